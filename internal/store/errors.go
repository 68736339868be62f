package store

import "fmt"

// ValidationError reports a missing or invalid field on a request.
// It carries no side effects: the store is untouched when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown task, sprint or backlog id.
type NotFoundError struct {
	Kind string // "task", "sprint", "backlog item"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s #%d not found", e.Kind, e.ID)
}

// ConflictError reports a field that must not be changed through the
// attempted path, e.g. status via the generic field update.
type ConflictError struct {
	Field  string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}
