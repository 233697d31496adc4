package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/santoscsolutions/site/internal/schemas"
	"github.com/santoscsolutions/site/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ErrInvalidCredentials{}, http.StatusUnauthorized},
		{&ErrUnauthorized{Reason: "x"}, http.StatusUnauthorized},
		{&ErrNotFound{Resource: "lead", ID: "1"}, http.StatusNotFound},
		{&ErrValidation{Field: "zip", Message: "min"}, http.StatusBadRequest},
		{&ErrUnavailable{Dependency: "database"}, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", pricing.ErrInputOutOfRange), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid username or password", (&ErrInvalidCredentials{}).Error())
	assert.Equal(t, "lead not found: abc", (&ErrNotFound{Resource: "lead", ID: "abc"}).Error())
	assert.Equal(t, "validation error: email - invalid format", (&ErrValidation{Field: "email", Message: "invalid format"}).Error())
	assert.Equal(t, "database unavailable", (&ErrUnavailable{Dependency: "database"}).Error())
}

func TestValidationError(t *testing.T) {
	req := types.ContactRequest{Name: "A", Phone: "4045550100", Email: "bad"}
	ve := validationError(req.Validate())
	assert.Equal(t, "Email", ve.Field)
	assert.Equal(t, "email", ve.Message)

	ve = validationError(schemas.ValidateNamed(schemas.ReviewsWebhook, []byte(`{"action":"x"}`)))
	assert.Equal(t, "(root)", ve.Field)
	assert.Contains(t, ve.Message, "reviews")

	ve = validationError(errors.New("odd"))
	assert.Equal(t, "request", ve.Field)
}
