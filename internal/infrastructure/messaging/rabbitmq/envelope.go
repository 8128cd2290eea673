package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"

	appCtx "github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/context"
)

const (
	envelopeVersion = 1
	producer        = "account-service"
)

// Envelope wraps every published payload. Consumers ignore unknown fields.
type Envelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

func newEnvelope[T any](ctx context.Context, occurredAt time.Time, payload T) Envelope[T] {
	return Envelope[T]{
		Version:    envelopeVersion,
		Producer:   producer,
		TraceID:    appCtx.RequestID(ctx),
		MessageID:  uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}
