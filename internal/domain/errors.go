package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrKind is the caller-facing error taxonomy. Transports map it to status codes.
type ErrKind string

const (
	KindInvalidInput       ErrKind = "invalid_input"       // 400
	KindDuplicateAccount   ErrKind = "duplicate_account"   // 409
	KindAccountNotFound    ErrKind = "account_not_found"   // 404
	KindInvalidCredential  ErrKind = "invalid_credential"  // 401
	KindWeakCredential     ErrKind = "weak_credential"     // 400
	KindAccountDeactivated ErrKind = "account_deactivated" // 403
	KindRateLimited        ErrKind = "rate_limited"        // 429
	KindStorageUnavailable ErrKind = "storage_unavailable" // 503
)

// Error is a structured domain error.
// - Kind: one of the taxonomy values above
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the same request may succeed later without changes.
func (e *Error) Retryable() bool { return e.Kind == KindStorageUnavailable }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

// WithMessage returns a copy of err carrying a different client message.
func WithMessage(err *Error, msg string) *Error {
	cp := *err
	cp.Message = msg
	return &cp
}

func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func Is(err error, code string) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

func IsKind(err error, kind ErrKind) bool {
	de, ok := As(err)
	return ok && de.Kind == kind
}

// KindOf returns "" for nil and non-domain errors.
func KindOf(err error) ErrKind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return ""
}

func Retryable(err error) bool {
	de, ok := As(err)
	return ok && de.Retryable()
}

// ----------------------
// Invalid input
// ----------------------

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindInvalidInput, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindInvalidInput, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrUnknownField(field string) *Error {
	return WithMeta(New(KindInvalidInput, "unknown_field", "field is not recognised"), map[string]string{
		"field":  field,
		"reason": "unknown",
	})
}

func ErrForbiddenField(field string) *Error {
	return WithMeta(New(KindInvalidInput, "forbidden_field", "field cannot be changed"), map[string]string{
		"field":  field,
		"reason": "forbidden",
	})
}

func ErrEmptyUpdate() *Error {
	return New(KindInvalidInput, "empty_update", "no fields to update")
}

// ----------------------
// Credentials
// ----------------------

func ErrWeakCredential(minLen int) *Error {
	return WithMeta(New(KindWeakCredential, "weak_password", "password does not meet requirements"), map[string]string{
		"min_length": strconv.Itoa(minLen),
	})
}

func ErrInvalidCredential() *Error {
	return New(KindInvalidCredential, "invalid_credentials", "invalid email or password")
}

// ----------------------
// Account state
// ----------------------

func ErrDuplicateAccount() *Error {
	return New(KindDuplicateAccount, "email_already_exists", "email already registered")
}

func ErrAccountNotFound() *Error {
	return New(KindAccountNotFound, "account_not_found", "account not found")
}

func ErrAccountDeactivated() *Error {
	return New(KindAccountDeactivated, "account_deactivated", "account is deactivated")
}

func ErrSessionInvalid() *Error {
	return New(KindInvalidCredential, "session_invalid", "session is invalid or expired")
}

func ErrTokenInvalid() *Error {
	return New(KindInvalidCredential, "token_invalid", "access token is invalid")
}

func ErrTokenExpired() *Error {
	return New(KindInvalidCredential, "token_expired", "access token has expired")
}

// ----------------------
// Rate limit
// ----------------------

func ErrRateLimited(scope string, retryAfter time.Duration) *Error {
	meta := map[string]string{"scope": scope}
	if retryAfter > 0 {
		meta["retry_after_ms"] = strconv.FormatInt(retryAfter.Milliseconds(), 10)
	}
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), meta)
}

// ----------------------
// Storage / collaborators (retryable)
// ----------------------

func ErrStorageUnavailable(component string, cause error) *Error {
	return WithMeta(
		Wrap(KindStorageUnavailable, "storage_unavailable", "service temporarily unavailable", cause),
		map[string]string{"component": component},
	)
}

// ErrVersionConflict is returned by conditional writes whose expected version no longer matches.
func ErrVersionConflict(entity string) *Error {
	return WithMeta(
		New(KindStorageUnavailable, "version_conflict", "concurrent update, retry the request"),
		map[string]string{"entity": entity},
	)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindStorageUnavailable, "hash_failed", "password hashing failed", cause)
}
