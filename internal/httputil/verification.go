package httputil

import (
	"errors"
	"net/http"
	"time"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// CodeSentResponse acknowledges that a verification code is on its way. The
// code itself is never echoed.
type CodeSentResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

func RespondCodeSent(w http.ResponseWriter, message string, expiresAt time.Time, statusCode int) {
	RespondJSON(w, CodeSentResponse{Success: true, Message: message, ExpiresAt: expiresAt}, statusCode)
}

// RespondVerificationError writes the response for an error returned by a
// verification machine. Validation errors keep their message; everything else
// gets a fixed message so no internal detail reaches the client.
func RespondVerificationError(w http.ResponseWriter, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, verification.ErrValidation):
		logger.Warn("verification rejected: validation", "error", err.Error())
		RespondErrorWithCode(w, err.Error(), CodeValidationFailed, http.StatusBadRequest)
	case errors.Is(err, verification.ErrNotFound):
		logger.Warn("verification rejected: subject not found")
		RespondErrorWithCode(w, "nothing to verify for this address, please start over", CodeNotFound, http.StatusNotFound)
	case errors.Is(err, verification.ErrNoPendingCycle):
		logger.Warn("verification rejected: no pending code")
		RespondErrorWithCode(w, "no verification in progress, please request a new code", CodeNoPendingCycle, http.StatusNotFound)
	case errors.Is(err, verification.ErrInvalidCode):
		logger.Warn("verification rejected: invalid code")
		RespondErrorWithCode(w, "invalid verification code", CodeInvalidCode, http.StatusUnauthorized)
	case errors.Is(err, verification.ErrExpired):
		logger.Warn("verification rejected: code expired")
		RespondErrorWithCode(w, "verification code has expired, please request a new one", CodeCodeExpired, http.StatusUnauthorized)
	case errors.Is(err, verification.ErrDeliveryFailed):
		logger.Error("verification code delivery failed", "error", err.Error())
		RespondErrorWithCode(w, "we could not send the verification email, please try again later", CodeDeliveryFailed, http.StatusServiceUnavailable)
	default:
		logger.Error("verification failed: internal error", "error", err.Error())
		RespondErrorWithCode(w, "something went wrong, please try again later", CodeInternalError, http.StatusInternalServerError)
	}
}
