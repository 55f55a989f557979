package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLockBusy           = errors.New("resource is locked by another operation")
	ErrWebhookUnverified  = errors.New("webhook signature verification failed")
)

// GatewayError wraps a failure of the external payment gateway call itself
// (network, auth, provider-side rejection) as opposed to a gateway response
// that merely reports a non-final status.
type GatewayError struct {
	Op  string // gateway operation, e.g. "create_order"
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError wraps err as a GatewayError for the given operation.
func NewGatewayError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Err: err}
}

// IsGatewayError reports whether err is (or wraps) a GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
