package inquiry

import (
	"net/http"
	"strconv"

	"github.com/redmonkez12/nonprofit-portal/internal/httputil"
	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/ratelimit"
)

type Handler struct {
	service  *Service
	cooldown ratelimit.EmailCooldown
}

// NewHandler wires the inquiry endpoints. cooldown may be nil.
func NewHandler(service *Service, cooldown ratelimit.EmailCooldown) *Handler {
	return &Handler{service: service, cooldown: cooldown}
}

// SubmitRequest is the contact form
type SubmitRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// VerifyRequest confirms a submission
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type InquiryResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Inquiry Inquiry `json:"inquiry"`
}

type ListResponse struct {
	Success   bool      `json:"success"`
	Inquiries []Inquiry `json:"inquiries"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
}

// Submit handles the contact form
// @Summary      Send a message
// @Description  Store the message unconfirmed and email the sender a 6-digit code. Resubmitting replaces the previous message.
// @Tags         inquiries
// @Accept       json
// @Produce      json
// @Param        request body SubmitRequest true "Message"
// @Success      200 {object} httputil.CodeSentResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Confirmation email could not be sent"
// @Router       /inquiries [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SubmitRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid inquiry request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if ratelimit.OnCooldown(r.Context(), h.cooldown, ratelimit.PurposeInquiry, req.Email) {
		httputil.RespondErrorWithCode(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	receipt, err := h.service.Submit(r.Context(), SubmitInput(req))
	if err != nil {
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	ratelimit.StartCooldown(r.Context(), h.cooldown, ratelimit.PurposeInquiry, req.Email)
	logger.Info("inquiry awaiting confirmation", "inquiry_id", receipt.SubjectID, "new_sender", receipt.Created)

	httputil.RespondCodeSent(w, "Please check your email for the confirmation code.", receipt.ExpiresAt, http.StatusOK)
}

// Verify handles the confirmation code
// @Summary      Confirm a message
// @Tags         inquiries
// @Accept       json
// @Produce      json
// @Param        request body VerifyRequest true "Email and code"
// @Success      200 {object} InquiryResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired code"
// @Failure      404 {object} httputil.ErrorResponse "Nothing to confirm"
// @Router       /inquiries/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid inquiry verify body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	inq, err := h.service.Confirm(r.Context(), req.Email, req.Code)
	if err != nil {
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	logger.Info("inquiry confirmed", "inquiry_id", inq.ID)

	httputil.RespondJSON(w, InquiryResponse{
		Success: true,
		Message: "Thank you! Your message has been sent.",
		Inquiry: *inq,
	}, http.StatusOK)
}

// List returns confirmed inquiries for the dashboard
// @Summary      List inquiries
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query int false "Page size (max 200)"
// @Param        offset query int false "Offset"
// @Success      200 {object} ListResponse
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      403 {object} httputil.ErrorResponse "Administrator access required"
// @Router       /admin/inquiries [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	limit, offset := clampPage(queryInt(r, "limit", DefaultPageSize), queryInt(r, "offset", 0))

	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		logger.Error("failed to list inquiries", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list inquiries", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ListResponse{Success: true, Inquiries: items, Limit: limit, Offset: offset}, http.StatusOK)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
