package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/httputil"
	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/ratelimit"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service  *Service
	cooldown ratelimit.EmailCooldown
	cookie   CookieConfig
}

// NewHandler wires the auth endpoints. cooldown may be nil.
func NewHandler(service *Service, cooldown ratelimit.EmailCooldown, cookie CookieConfig) *Handler {
	return &Handler{
		service:  service,
		cooldown: cooldown,
		cookie:   cookie,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ResendVerificationRequest asks for a new email verification code
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// VerifyEmailRequest carries the code from the verification email
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginRequest represents the login request body. Identity is an email
// address or a username.
type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// VerifyLoginRequest carries the one-time login code
type VerifyLoginRequest struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Role          user.Role `json:"role"`
	EmailVerified bool      `json:"email_verified"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// UserEnvelope wraps a user in the success envelope
type UserEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    UserResponse `json:"user"`
}

// SessionResponse is returned when a login code is accepted. The token itself
// travels in the session cookie.
type SessionResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an unverified account and email a 6-digit verification code.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email or username already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Verification email could not be sent"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	reg, err := h.service.Register(r.Context(), RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			httputil.RespondErrorWithCode(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case errors.Is(err, user.ErrDuplicateUsername):
			logger.Warn("registration failed: username taken")
			httputil.RespondErrorWithCode(w, "username already taken", httputil.CodeUsernameTaken, http.StatusConflict)
		default:
			httputil.RespondVerificationError(w, logger, err)
		}
		return
	}

	ratelimit.StartCooldown(r.Context(), h.cooldown, ratelimit.PurposeRegister, reg.User.Email)
	logger.Info("user registered successfully", "user_id", reg.User.ID)

	httputil.RespondJSON(w, RegisterResponse{
		Success:   true,
		Message:   "Registration successful. Please check your email for the verification code.",
		User:      toUserResponse(reg.User),
		ExpiresAt: reg.ExpiresAt,
	}, http.StatusCreated)
}

// ResendVerification handles resending the verification code
// @Summary      Resend verification code
// @Description  Issue a new email verification code; any earlier code stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResendVerificationRequest true "Email address"
// @Success      200 {object} httputil.CodeSentResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      404 {object} httputil.ErrorResponse "No account for this email"
// @Failure      409 {object} httputil.ErrorResponse "Email already verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Verification email could not be sent"
// @Router       /auth/resend-verification [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResendVerificationRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if ratelimit.OnCooldown(r.Context(), h.cooldown, ratelimit.PurposeRegister, req.Email) {
		logger.Warn("email on cooldown", "email", req.Email)
		httputil.RespondErrorWithCode(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	receipt, err := h.service.ResendVerification(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyVerified) {
			logger.Warn("resend verification failed: already verified")
			httputil.RespondErrorWithCode(w, "This email is already verified. You can login now.", httputil.CodeAlreadyVerified, http.StatusConflict)
			return
		}
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	ratelimit.StartCooldown(r.Context(), h.cooldown, ratelimit.PurposeRegister, req.Email)

	httputil.RespondCodeSent(w, "A new verification code has been sent.", receipt.ExpiresAt, http.StatusOK)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Submit the 6-digit code from the verification email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyEmailRequest true "Email and code"
// @Success      200 {object} UserEnvelope
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired code"
// @Failure      404 {object} httputil.ErrorResponse "No verification in progress"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/verify-email [post]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyEmailRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid verify email request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	verified, err := h.service.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	logger.Info("email verified successfully", "user_id", verified.ID)

	httputil.RespondJSON(w, UserEnvelope{
		Success: true,
		Message: "Email verified successfully. You can now login.",
		User:    toUserResponse(verified),
	}, http.StatusOK)
}

// Login handles the password step of login
// @Summary      User login
// @Description  Check the password and email a one-time login code. No session is created yet.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} httputil.CodeSentResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Login code could not be sent"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	identity := strings.ToLower(strings.TrimSpace(req.Identity))
	logger = logger.WithFields(map[string]any{"identity": identity})

	if ratelimit.OnCooldown(r.Context(), h.cooldown, ratelimit.PurposeLogin, identity) {
		logger.Warn("login code on cooldown")
		httputil.RespondErrorWithCode(w, "please wait before requesting another login code", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	receipt, err := h.service.Login(r.Context(), identity, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrEmailNotVerified):
			logger.Warn("login failed: email not verified")
			httputil.RespondErrorWithCode(w, "email not verified, please check your inbox", httputil.CodeEmailNotVerified, http.StatusForbidden)
		default:
			httputil.RespondVerificationError(w, logger, err)
		}
		return
	}

	ratelimit.StartCooldown(r.Context(), h.cooldown, ratelimit.PurposeLogin, identity)
	logger.Info("login code sent")

	httputil.RespondCodeSent(w, "A login code has been sent to your email.", receipt.ExpiresAt, http.StatusOK)
}

// VerifyLogin handles the code step of login
// @Summary      Complete login
// @Description  Submit the one-time login code. On success the session cookie is set.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyLoginRequest true "Identity and code"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired code"
// @Failure      404 {object} httputil.ErrorResponse "No login in progress"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login/verify [post]
func (h *Handler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyLoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid verify login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	session, err := h.service.VerifyLogin(r.Context(), req.Identity, req.Code)
	if err != nil {
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	SetSessionCookie(w, h.cookie, session.Token)
	logger.Info("user logged in successfully", "user_id", session.User.ID)

	httputil.RespondJSON(w, SessionResponse{
		Success:   true,
		Message:   "logged in successfully",
		User:      toUserResponse(session.User),
		ExpiresAt: session.ExpiresAt,
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Clear the session cookie
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.MessageResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.cookie)

	logging.GetLoggerFromContext(r.Context()).Info("user logged out")

	httputil.RespondMessage(w, "logged out", http.StatusOK)
}

// Me returns the current account, read fresh from the database
// @Summary      Current user
// @Description  Profile of the logged-in account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserEnvelope
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	current, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			ClearSessionCookie(w, h.cookie)
			httputil.RespondErrorWithCode(w, "account no longer exists", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}
		logger.Error("failed to load profile", "user_id", userID, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, UserEnvelope{Success: true, User: toUserResponse(current)}, http.StatusOK)
}
