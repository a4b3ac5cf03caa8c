package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/ranking"
	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/stretchr/testify/assert"
)

func TestErrCustomerNotFound(t *testing.T) {
	err := &ErrCustomerNotFound{ID: "7590-VHVEG"}
	assert.Equal(t, "customer not found: 7590-VHVEG", err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestErrDatasetUnavailable(t *testing.T) {
	err := &ErrDatasetUnavailable{}
	assert.Equal(t, "no reference dataset is configured", err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
}

func TestErrBadRequest(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &ErrBadRequest{Message: "invalid request body", Cause: cause}
	assert.Equal(t, "bad request: invalid request body: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "ValidationError",
			err:      &schema.ValidationError{Field: "Contract", Value: "Monthly", Reason: "not an allowed value"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "wrapped ValidationError",
			err:      &batchItemError{Index: 3, Err: &schema.ValidationError{Field: "tenure"}},
			expected: http.StatusBadRequest,
		},
		{
			name:     "InvalidArgumentError",
			err:      &ranking.InvalidArgumentError{Argument: "k", Message: "must be positive"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "ErrCustomerNotFound",
			err:      fmt.Errorf("lookup: %w", &ErrCustomerNotFound{ID: "x"}),
			expected: http.StatusNotFound,
		},
		{
			name:     "ErrDatasetUnavailable",
			err:      &ErrDatasetUnavailable{},
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "MismatchError",
			err:      &schema.MismatchError{Field: "tenure", Message: "kind disagrees"},
			expected: http.StatusInternalServerError,
		},
		{
			name:     "LoadError",
			err:      &model.LoadError{Path: "model.json", Message: "missing"},
			expected: http.StatusInternalServerError,
		},
		{
			name:     "unknown error",
			err:      errors.New("boom"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
