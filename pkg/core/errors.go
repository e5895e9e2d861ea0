package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure categories surfaced to callers.
// Every typed error below unwraps to one of them.
var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrTransport      = errors.New("transport failure")
	ErrSchemaMapping  = errors.New("schema mapping failed")
)

// NotFoundError is returned when a dataset, container or catalog artifact
// does not exist.
type NotFoundError struct {
	Kind string // dataset, container, artifact
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError is returned for malformed configuration.
type ValidationError struct {
	Source  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Source != "" {
		return fmt.Sprintf("%s: %s", e.Source, msg)
	}
	return msg
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthenticationError is returned when a backend rejects credentials.
type AuthenticationError struct {
	Location string
	Status   int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("credentials rejected by %s (status %d)", e.Location, e.Status)
}

// Unwrap returns ErrAuthentication.
func (e *AuthenticationError) Unwrap() error { return ErrAuthentication }

// TransportError wraps network and I/O failures.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns both ErrTransport and the underlying error.
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// SchemaMappingError is returned when a field type has no column mapping.
type SchemaMappingError struct {
	Field string
	Type  FieldType
}

func (e *SchemaMappingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: unrecognized type %q", e.Field, e.Type)
	}
	return fmt.Sprintf("unrecognized field type %q", e.Type)
}

// Unwrap returns ErrSchemaMapping.
func (e *SchemaMappingError) Unwrap() error { return ErrSchemaMapping }
