package publish

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates the server could not be reached or refused the request.
	ErrTransport = errors.New("transport failure")

	// ErrValidation indicates a local definition or file cannot be published.
	ErrValidation = errors.New("validation failed")

	// ErrSerialization indicates a model document could not be generated.
	ErrSerialization = errors.New("serialization failed")
)

// TransportError wraps a failure talking to the server.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ValidationError reports a local input that is not publishable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SerializationError wraps a failure generating a schema or metadata document.
type SerializationError struct {
	Document string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to generate %s document: %v", e.Document, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}
