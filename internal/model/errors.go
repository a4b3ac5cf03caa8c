// Package model loads the churn classifier artifact and scores feature vectors with it.
package model

import "fmt"

// LoadError represents a model artifact that is missing, unreadable, corrupt
// or internally inconsistent.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model load error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("model load error: %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
