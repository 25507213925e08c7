package types

import "errors"

var (
	// ErrInvalidConfig is fatal at startup or rejects a bad request parameter.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEmptyInput marks a caller precondition failure.
	ErrEmptyInput = errors.New("empty input")
	// ErrUpstreamUnavailable marks a failed vector index or model endpoint call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// OperationError wraps a failure of an external collaborator.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

// Upstream wraps err as an upstream failure of op. It returns nil for a nil err.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Err: err}
}
