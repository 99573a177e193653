package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("amount must be positive"), http.StatusBadRequest},
		{"not found", NotFound("tender %s not found", "x"), http.StatusNotFound},
		{"conflict", Conflict("tender is not pending"), http.StatusConflict},
		{"forbidden", Forbidden("own tender"), http.StatusForbidden},
		{"unauthorized", Unauthorized("missing token"), http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("get tender: %w", ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	require.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
	require.Equal(t, "tender abc not found", Message(fmt.Errorf("wrap: %w", NotFound("tender %s not found", "abc"))))
	require.Equal(t, "not found", Message(ErrNotFound))
}

func TestErrorsIsKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", Conflict("tender is closed"))
	require.ErrorIs(t, err, ErrConflict)
	require.NotErrorIs(t, err, ErrValidation)
}
