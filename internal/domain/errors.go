package domain

import (
	"errors"
	"strings"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrSecurityAlreadyExists    = errors.New("security_already_exists")
	ErrSecurityNotFound         = errors.New("security_not_found")
	ErrBrokerAlreadyExists      = errors.New("broker_already_exists")
	ErrBrokerNotFound           = errors.New("broker_not_found")
	ErrShareholderAlreadyExists = errors.New("shareholder_already_exists")
	ErrShareholderNotFound      = errors.New("shareholder_not_found")
	ErrOrderNotFound            = errors.New("order_not_found")
	ErrWebhookNotFound          = errors.New("webhook_not_found")
)

// ValidationError carries every reason a request was refused before it
// reached the matching core.
type ValidationError struct {
	Reasons []string
}

// NewValidationError creates a ValidationError from one or more reasons.
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, "; ")
}
