package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/auth"
	"github.com/accp-conference/api/internal/config"
	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/ratelimit"
	"github.com/accp-conference/api/internal/registration"
	"github.com/accp-conference/api/internal/upload"
	"github.com/accp-conference/api/internal/verification"
)

// Handlers groups the route handlers mounted by NewRouter
type Handlers struct {
	Auth         *auth.Handler
	Registration *registration.Handler
	Upload       *upload.Handler
	Verification *verification.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, authMiddleware *auth.Middleware, limiter ratelimit.Checker, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.ClientModeHeader},
			ExposedHeaders:   []string{"Content-Length", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5, "application/json"))

	r.Get("/health", handleHealth)

	// Swagger UI is never mounted outside development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled", "path", "/swagger/")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(ratelimit.Middleware(limiter, ratelimit.PurposeRegister)).Post("/register", h.Registration.Register)
		r.With(ratelimit.Middleware(limiter, ratelimit.PurposeLogin)).Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)
		r.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
	})

	// Registrants upload before they have an account
	r.Route("/upload", func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, ratelimit.PurposeUpload))
		r.Post("/verify-doc", h.Upload.VerifyDoc)
		r.Post("/abstract", h.Upload.Abstract)
	})

	r.Route("/backoffice", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Use(auth.RequireRole(account.RoleAdmin, account.RoleStaff))

		r.Route("/verifications", func(r chi.Router) {
			r.Get("/", h.Verification.List)
			r.Get("/{id}", h.Verification.Get)
			r.Post("/{id}/approve", h.Verification.Approve)
			r.Post("/{id}/reject", h.Verification.Reject)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondErrorWithCode(w, "route not found", httputil.CodeNotFound, http.StatusNotFound)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
