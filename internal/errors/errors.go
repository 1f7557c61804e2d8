// Package errors defines the domain error taxonomy returned to callers.
// Errors here are structured data the caller branches on; they are never
// used as control flow inside the services themselves.
package errors

import "fmt"

// DomainError is a caller-visible error with a stable machine-readable code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches two domain errors by code so errors.Is works across instances.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}
