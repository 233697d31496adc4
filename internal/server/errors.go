package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/santoscsolutions/site/internal/schemas"
)

// ErrInvalidCredentials indicates a failed admin login.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrNotFound indicates a missing resource.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized indicates a missing or wrong shared secret.
type ErrUnauthorized struct {
	Reason string
}

func (e *ErrUnauthorized) Error() string {
	return "unauthorized: " + e.Reason
}

// ErrUnavailable indicates a dependency the endpoint needs is not configured.
type ErrUnavailable struct {
	Dependency string
}

func (e *ErrUnavailable) Error() string {
	return e.Dependency + " unavailable"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// validationError converts validator and schema failures to ErrValidation.
// The first failing field is reported.
func validationError(err error) *ErrValidation {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ErrValidation{Field: fieldErrs[0].Field(), Message: fieldErrs[0].Tag()}
	}
	var schemaErr *schemas.ValidationError
	if errors.As(err, &schemaErr) && len(schemaErr.Errors) > 0 {
		return &ErrValidation{Field: schemaErr.Errors[0].Field, Message: schemaErr.Errors[0].Message}
	}
	return &ErrValidation{Field: "request", Message: err.Error()}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if errors.Is(err, pricing.ErrInputOutOfRange) {
		return http.StatusBadRequest
	}
	switch err.(type) {
	case *ErrInvalidCredentials, *ErrUnauthorized:
		return http.StatusUnauthorized
	case *ErrNotFound:
		return http.StatusNotFound
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
