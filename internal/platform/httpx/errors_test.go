package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdesk/staffdesk/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	type payload struct {
		Year int `validate:"required,min=1900"`
	}
	validationErr := validator.New().Struct(payload{Year: 12})

	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: validationErr, want: http.StatusBadRequest},
		{name: "field conflict", err: shared.NewFieldError("year", "fiscal year already exists"), want: http.StatusConflict},
		{name: "policy conflict", err: shared.NewPolicyError("delete node", "system nodes cannot be deleted"), want: http.StatusConflict},
		{name: "not found", err: fmt.Errorf("fiscal year 9: %w", shared.ErrNotFound), want: http.StatusNotFound},
		{name: "precondition", err: fmt.Errorf("copy: %w", shared.ErrPrecondition), want: http.StatusPreconditionFailed},
		{name: "access denied", err: shared.ErrAccessDenied, want: http.StatusForbidden},
		{name: "credentials", err: shared.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "unexpected", err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)

			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.want, body.Status)
		})
	}
}

func TestRespondErrorFieldDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.NewFieldError("slug", "slug already exists"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"slug": "slug already exists"}, body.Fields)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed for user staffdesk"))
	assert.NotContains(t, rec.Body.String(), "password")
}
