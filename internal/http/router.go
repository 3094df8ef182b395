package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/nonprofit-portal/internal/auth"
	"github.com/redmonkez12/nonprofit-portal/internal/collaboration"
	"github.com/redmonkez12/nonprofit-portal/internal/config"
	"github.com/redmonkez12/nonprofit-portal/internal/httputil"
	"github.com/redmonkez12/nonprofit-portal/internal/inquiry"
	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/ratelimit"
)

// Handlers bundles everything the router mounts. Limiter may be nil, which
// disables per-IP budgets.
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Inquiries      *inquiry.Handler
	Collaborations *collaboration.Handler
	Limiter        *ratelimit.Limiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders(!cfg.Server.IsDevelopment()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger, "/health"))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	verifyBudget := perIP(h.Limiter, ratelimit.PurposeVerify)

	r.Route("/auth", func(r chi.Router) {
		r.With(perIP(h.Limiter, ratelimit.PurposeRegister)).Post("/register", h.Auth.Register)
		r.With(perIP(h.Limiter, ratelimit.PurposeResend)).Post("/resend-verification", h.Auth.ResendVerification)
		r.With(verifyBudget).Post("/verify-email", h.Auth.VerifyEmail)
		r.With(perIP(h.Limiter, ratelimit.PurposeLogin)).Post("/login", h.Auth.Login)
		r.With(verifyBudget).Post("/login/verify", h.Auth.VerifyLogin)
		r.Post("/logout", h.Auth.Logout)
		r.With(h.AuthMiddleware.RequireAuth).Get("/me", h.Auth.Me)
	})

	r.Route("/inquiries", func(r chi.Router) {
		r.With(perIP(h.Limiter, ratelimit.PurposeInquiry)).Post("/", h.Inquiries.Submit)
		r.With(verifyBudget).Post("/verify", h.Inquiries.Verify)
	})

	r.Route("/collaborations", func(r chi.Router) {
		r.With(perIP(h.Limiter, ratelimit.PurposeCollaboration)).Post("/", h.Collaborations.Submit)
		r.With(verifyBudget).Post("/verify", h.Collaborations.Verify)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.AuthMiddleware.RequireAuth)
		r.Use(h.AuthMiddleware.RequireAdmin)
		r.Get("/inquiries", h.Inquiries.List)
		r.Get("/collaborations", h.Collaborations.List)
	})

	return r
}

func perIP(l *ratelimit.Limiter, purpose string) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.PerIP(purpose)
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
