package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/logging"
)

// Authenticator is implemented by *Service
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*AuthTokens, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

// Handler contains HTTP handlers for session endpoints
type Handler struct {
	service         Authenticator
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewHandler(service Authenticator, isProduction bool, accessDuration, refreshDuration time.Duration) *Handler {
	return &Handler{
		service:         service,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles sign-in
// @Summary      Sign in
// @Description  Authenticate an active account. Browser clients sending X-Auth-Mode: cookie get HttpOnly cookies instead of tokens in the body.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthTokens
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Account pending review or rejected"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": strings.ToLower(req.Email)})

	tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountNotActive):
			logger.Warn("login failed: account not active")
			httputil.RespondErrorWithCode(w, "account is not active yet", httputil.CodeAccountNotActive, http.StatusForbidden)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("account logged in")
	h.respondTokens(w, r, tokens, "logged in successfully")
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Exchange a refresh token (body or cookie) for a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token"
// @Success      200 {object} AuthTokens
// @Failure      400 {object} httputil.ErrorResponse "Refresh token missing"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	refreshToken := readRefreshToken(w, r)
	if refreshToken == "" {
		logger.Warn("refresh token missing from both body and cookie")
		httputil.RespondErrorWithCode(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	tokens, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrRefreshTokenRevoked), errors.Is(err, ErrRefreshTokenExpired):
			logger.Warn("token refresh failed", "error", err.Error())
			ClearAuthCookies(w, h.isProduction)
			httputil.RespondErrorWithCode(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountNotActive):
			ClearAuthCookies(w, h.isProduction)
			httputil.RespondErrorWithCode(w, "account is not active", httputil.CodeAccountNotActive, http.StatusForbidden)
		default:
			logger.Error("token refresh failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	h.respondTokens(w, r, tokens, "token refreshed successfully")
}

// Logout handles sign-out
// @Summary      Sign out
// @Description  Revoke the refresh token and clear auth cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} map[string]string
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if refreshToken := readRefreshToken(w, r); refreshToken != "" {
		if err := h.service.RevokeRefreshToken(r.Context(), refreshToken); err != nil {
			// cookies are cleared regardless
			logger.Warn("failed to revoke refresh token", "error", err.Error())
		}
	}

	ClearAuthCookies(w, h.isProduction)
	httputil.RespondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// Me returns the signed-in account
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} account.Account
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	acc, err := h.service.Me(r.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			httputil.RespondErrorWithCode(w, "account not found", httputil.CodeNotFound, http.StatusUnauthorized)
			return
		}
		logger.Error("failed to load account", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, acc, http.StatusOK)
}

func (h *Handler) respondTokens(w http.ResponseWriter, r *http.Request, tokens *AuthTokens, message string) {
	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		httputil.RespondJSON(w, map[string]string{"message": message}, http.StatusOK)
		return
	}
	httputil.RespondJSON(w, tokens, http.StatusOK)
}

// readRefreshToken prefers the JSON body and falls back to the cookie
func readRefreshToken(w http.ResponseWriter, r *http.Request) string {
	var req RefreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if token := strings.TrimSpace(req.RefreshToken); token != "" {
				return token
			}
		}
	}
	token, _ := GetRefreshTokenFromCookie(r)
	return token
}
