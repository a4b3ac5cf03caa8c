package dataset

import "fmt"

// LoadError represents a dataset source that could not be read or contains an invalid row.
// Row is 1-based and counts data rows only; it is zero for source-level failures.
type LoadError struct {
	Source  string
	Row     int
	Field   string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	loc := e.Source
	if e.Row > 0 {
		loc = fmt.Sprintf("%s row %d", loc, e.Row)
	}
	if e.Field != "" {
		loc = fmt.Sprintf("%s field %s", loc, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("dataset load error: %s: %s: %v", loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("dataset load error: %s: %s", loc, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// DuplicateIDError represents two rows sharing one customer identifier.
type DuplicateIDError struct {
	ID       string
	FirstRow int
	Row      int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate customer id %q at rows %d and %d", e.ID, e.FirstRow, e.Row)
}
