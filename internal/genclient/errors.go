package genclient

import (
	"errors"
	"fmt"
)

// ErrorType classifies generation-service failures for retry decisions.
// Transport failures are worth retrying; everything else is not.
type ErrorType string

const (
	// ErrorTypeTransport covers timeouts, rate limits, and 5xx responses.
	ErrorTypeTransport ErrorType = "TransportError"

	// ErrorTypeGeneration covers schema-invalid output that survived the
	// repair budget, and non-transient API rejections.
	ErrorTypeGeneration ErrorType = "GenerationError"
)

// TransportError is a transient failure reaching the generation service.
// The client retries these internally; if one escapes, the activity layer
// maps it to a retryable Temporal error.
type TransportError struct {
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generation transport error: status %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("generation transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// GenerationError is a non-transient generation failure: the service
// responded but the output is unusable.
type GenerationError struct {
	Agent string
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Agent != "" {
		return fmt.Sprintf("generation error (%s): %v", e.Agent, e.Cause)
	}
	return fmt.Sprintf("generation error: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// IsTransient reports whether the error is a transport-level failure that
// may succeed on retry.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
