package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/churn-predictor/internal/ranking"
	"github.com/jonathan/churn-predictor/internal/schema"
)

// ErrCustomerNotFound indicates an identifier absent from the reference dataset
type ErrCustomerNotFound struct {
	ID string
}

func (e *ErrCustomerNotFound) Error() string {
	return fmt.Sprintf("customer not found: %s", e.ID)
}

// ErrDatasetUnavailable indicates a dataset route was called on a server started without one
type ErrDatasetUnavailable struct{}

func (e *ErrDatasetUnavailable) Error() string {
	return "no reference dataset is configured"
}

// ErrBadRequest indicates a request body or query that could not be decoded
type ErrBadRequest struct {
	Message string
	Cause   error
}

func (e *ErrBadRequest) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bad request: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("bad request: %s", e.Message)
}

func (e *ErrBadRequest) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *schema.ValidationError
		invalidArg  *ranking.InvalidArgumentError
		badRequest  *ErrBadRequest
		notFound    *ErrCustomerNotFound
		unavailable *ErrDatasetUnavailable
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &invalidArg), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
