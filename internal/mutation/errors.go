package mutation

import (
	"errors"
	"fmt"
)

// ErrNotCached is returned when a mutation targets an entity the cache
// does not hold. Updates are diffed against the cached record so there is
// nothing to send.
var ErrNotCached = errors.New("not in cache")

// ValidationError reports a mutation rejected before any request was made
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Reason)
}

func required(entity, field string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Reason: "is required"}
}

func tooLong(entity, field string, max int) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Reason: fmt.Sprintf("is longer than %d characters", max)}
}
