package collaboration

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

func NewHandler(service *Service, cooldown ratelimit.EmailCooldown) *Handler {
	return &Handler{service: service, cooldown: cooldown}
}

type SubmitRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Website      string `json:"website"`
	Proposal     string `json:"proposal"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RequestResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Request Request `json:"request"`
}

type ListResponse struct {
	Success  bool      `json:"success"`
	Requests []Request `json:"requests"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Submit handles the collaboration form
// @Summary      Propose a collaboration
// @Description  Store the proposal unconfirmed and email the requester a 6-digit code. Resubmitting replaces the previous proposal.
// @Tags         collaborations
// @Accept       json
// @Produce      json
// @Param        request body SubmitRequest true "Proposal"
// @Success      200 {object} httputil.CodeSentResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Confirmation email could not be sent"
// @Router       /collaborations [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SubmitRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid collaboration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if ratelimit.OnCooldown(r.Context(), h.cooldown, ratelimit.PurposeCollaboration, req.Email) {
		httputil.RespondErrorWithCode(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	receipt, err := h.service.Submit(r.Context(), SubmitInput(req))
	if err != nil {
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	ratelimit.StartCooldown(r.Context(), h.cooldown, ratelimit.PurposeCollaboration, req.Email)
	logger.Info("collaboration request awaiting confirmation", "request_id", receipt.SubjectID, "new_requester", receipt.Created)

	httputil.RespondCodeSent(w, "Please check your email for the confirmation code.", receipt.ExpiresAt, http.StatusOK)
}

// Verify handles the confirmation code
// @Summary      Confirm a collaboration request
// @Tags         collaborations
// @Accept       json
// @Produce      json
// @Param        request body VerifyRequest true "Email and code"
// @Success      200 {object} RequestResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired code"
// @Failure      404 {object} httputil.ErrorResponse "Nothing to confirm"
// @Router       /collaborations/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid collaboration verify body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	cr, err := h.service.Confirm(r.Context(), req.Email, req.Code)
	if err != nil {
		httputil.RespondVerificationError(w, logger, err)
		return
	}

	logger.Info("collaboration request confirmed", "request_id", cr.ID)

	httputil.RespondJSON(w, RequestResponse{
		Success: true,
		Message: "Thank you! Your collaboration request has been sent.",
		Request: *cr,
	}, http.StatusOK)
}

// List returns confirmed requests for the dashboard
// @Summary      List collaboration requests
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query int false "Page size (max 200)"
// @Param        offset query int false "Offset"
// @Success      200 {object} ListResponse
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      403 {object} httputil.ErrorResponse "Administrator access required"
// @Router       /admin/collaborations [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	limit, offset := clampPage(queryInt(r, "limit", DefaultPageSize), queryInt(r, "offset", 0))

	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		logger.Error("failed to list collaboration requests", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list collaboration requests", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ListResponse{Success: true, Requests: items, Limit: limit, Offset: offset}, http.StatusOK)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
