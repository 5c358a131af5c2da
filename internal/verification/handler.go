package verification

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/auth"
	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/validate"
)

// Reviewer is implemented by *Service
type Reviewer interface {
	List(ctx context.Context, q ListQuery) (*Page, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	Approve(ctx context.Context, id, reviewerID uuid.UUID) (*account.Account, error)
	Reject(ctx context.Context, id, reviewerID uuid.UUID, req RejectRequest) (*account.Account, error)
}

// Handler exposes the backoffice verification queue
type Handler struct {
	service Reviewer
}

func NewHandler(service Reviewer) *Handler {
	return &Handler{service: service}
}

// List handles the verification queue
// @Summary      List verification requests
// @Tags         backoffice
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "pending (default), approved, rejected or all"
// @Param        search query string false "Name or email contains"
// @Param        page   query int    false "Page number, from 1"
// @Param        limit  query int    false "Page size, at most 100"
// @Success      200 {object} Page
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Router       /backoffice/verifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	q := r.URL.Query()

	page, err := h.service.List(r.Context(), ListQuery{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   atoiOrZero(q.Get("page")),
		Limit:  atoiOrZero(q.Get("limit")),
	})
	if err != nil {
		h.respondError(w, logger, err)
		return
	}

	httputil.RespondJSON(w, page, http.StatusOK)
}

// Get handles a single verification request
// @Summary      Get a verification request
// @Description  Account details with a short-lived link to the submitted document
// @Tags         backoffice
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Account ID"
// @Success      200 {object} Detail
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /backoffice/verifications/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, logger, err)
		return
	}

	httputil.RespondJSON(w, detail, http.StatusOK)
}

// Approve handles approval
// @Summary      Approve a verification request
// @Tags         backoffice
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Account ID"
// @Success      200 {object} account.Account
// @Failure      404 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse "Already decided"
// @Failure      422 {object} httputil.ErrorResponse "Document required"
// @Router       /backoffice/verifications/{id}/approve [post]
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	reviewerID, _ := auth.GetUserIDFromContext(r.Context())
	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{
		"account_id":  id,
		"reviewer_id": reviewerID,
	})

	decided, err := h.service.Approve(r.Context(), id, reviewerID)
	if err != nil {
		h.respondError(w, logger, err)
		return
	}

	logger.Info("verification approved")
	httputil.RespondJSON(w, decided, http.StatusOK)
}

// Reject handles rejection
// @Summary      Reject a verification request
// @Tags         backoffice
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string        true "Account ID"
// @Param        request body RejectRequest true "Reason and notes"
// @Success      200 {object} account.Account
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse "Already decided"
// @Router       /backoffice/verifications/{id}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	reviewerID, _ := auth.GetUserIDFromContext(r.Context())
	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{
		"account_id":  id,
		"reviewer_id": reviewerID,
	})

	var req RejectRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid reject request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	decided, err := h.service.Reject(r.Context(), id, reviewerID, req)
	if err != nil {
		h.respondError(w, logger, err)
		return
	}

	logger.Info("verification rejected", "reason", req.Reason)
	httputil.RespondJSON(w, decided, http.StatusOK)
}

func (h *Handler) respondError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var ve *validate.Error
	switch {
	case errors.As(err, &ve):
		code := httputil.CodeValidationFailed
		if ve.Field == "reason" {
			code = httputil.CodeInvalidReason
		}
		httputil.RespondFieldError(w, ve.Message, code, ve.Field, http.StatusBadRequest)
	case errors.Is(err, account.ErrNotFound):
		httputil.RespondErrorWithCode(w, "verification request not found", httputil.CodeNotFound, http.StatusNotFound)
	case errors.Is(err, account.ErrAlreadyDecided):
		logger.Warn("decision rejected: already decided")
		httputil.RespondErrorWithCode(w, "verification request has already been decided", httputil.CodeAlreadyDecided, http.StatusConflict)
	case errors.Is(err, ErrDocumentRequired):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeDocumentRequired, http.StatusUnprocessableEntity)
	default:
		logger.Error("verification request failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid id", httputil.CodeInvalidID, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
