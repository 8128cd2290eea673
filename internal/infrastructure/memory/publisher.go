package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
)

// NoopPublisher logs events instead of delivering them. Used when no broker is configured.
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(l zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: l.With().Str("component", "noop_publisher").Logger()}
}

func (p *NoopPublisher) PublishAccountCreated(ctx context.Context, evt account.AccountCreatedEvent) error {
	p.log.Debug().Str("account_id", evt.AccountID).Msg("account.created (not delivered)")
	return nil
}

func (p *NoopPublisher) PublishPasswordChanged(ctx context.Context, evt account.PasswordChangedEvent) error {
	p.log.Debug().Str("account_id", evt.AccountID).Msg("account.password_changed (not delivered)")
	return nil
}
