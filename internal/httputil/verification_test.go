package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

func TestRespondVerificationError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{verification.InvalidInput("email is required"), http.StatusBadRequest, CodeValidationFailed},
		{verification.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{verification.ErrNoPendingCycle, http.StatusNotFound, CodeNoPendingCycle},
		{verification.ErrInvalidCode, http.StatusUnauthorized, CodeInvalidCode},
		{verification.ErrExpired, http.StatusUnauthorized, CodeCodeExpired},
		{fmt.Errorf("send inquiry_code: %w", verification.ErrDeliveryFailed), http.StatusServiceUnavailable, CodeDeliveryFailed},
		{fmt.Errorf("find subject: %w", verification.ErrUnknown), http.StatusInternalServerError, CodeInternalError},
		{errors.New("anything else"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondVerificationError(rec, logging.Discard(), tc.err)

			assert.Equal(t, tc.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Code)
			assert.NotContains(t, body.Error, "find subject")
		})
	}
}

func TestRespondVerificationError_ValidationMessageIsKept(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondVerificationError(rec, logging.Discard(), verification.InvalidInput("email is required"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "email is required", body.Error)
}
