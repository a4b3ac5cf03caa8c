// Package schema defines the customer feature schema and validates raw input against it.
package schema

import "fmt"

// ValidationError reports a single field that failed validation.
// It is user-correctable and carries enough detail to fix the input.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("schema validation error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema validation error: %s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// MismatchError reports disagreement between the model artifact and the schema
// about the column set. It indicates artifact/schema drift and is fatal at startup.
type MismatchError struct {
	Field   string
	Message string
}

func (e *MismatchError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema mismatch: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("schema mismatch: %s", e.Message)
}
