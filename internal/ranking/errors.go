package ranking

import "fmt"

// InvalidArgumentError represents a ranking request with an unusable argument.
type InvalidArgumentError struct {
	Argument string
	Message  string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Message)
}
