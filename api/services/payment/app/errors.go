package app

import (
	"errors"
	"fmt"
	"strings"
)

// Typed errors for the payment app layer. These enable transport mapping
// without relying on SDK-specific error types at the transport layer.
var (
	// ErrValidation indicates missing or malformed input; nothing was sent to the provider.
	ErrValidation = errors.New("validation error")
	// ErrProvider indicates the payment provider rejected the request or could not be reached.
	ErrProvider = errors.New("payment provider error")
	// ErrSignature indicates a payment callback or webhook failed signature verification.
	ErrSignature = errors.New("payment signature verification failed")
	// ErrUserNotFound indicates no profile matches the payer email.
	ErrUserNotFound = errors.New("user not found")
	// ErrPlanNotFound indicates the plan id does not exist.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrNoActiveSubscription indicates the user has no active subscription.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrActivation indicates storage failed after the payment was verified.
	// The user has paid without being granted access.
	ErrActivation = errors.New("subscription activation failed")
	// ErrNotConfigured indicates a secret needed for the operation is missing.
	ErrNotConfigured = errors.New("not configured")
	// ErrDatabase indicates a database-related failure outside activation.
	ErrDatabase = errors.New("database error")
)

// FieldError names one rejected request field and the rule it broke.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError lists every rejected field of a request. It matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s failed %s", f.Field, f.Rule))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, rule string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule}}}
}
