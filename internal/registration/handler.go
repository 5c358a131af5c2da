package registration

import (
	"context"
	"errors"
	"net/http"

	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/validate"
)

var conflictMessages = map[string]string{
	account.FieldEmail:      "Email already exists",
	account.FieldNationalID: "Thai ID Card already registered",
	account.FieldPassportID: "Passport ID already registered",
	account.FieldLicenseID:  "Pharmacy License Number already registered",
}

// Registrar is implemented by *Service
type Registrar interface {
	Register(ctx context.Context, req Request) (*Result, error)
}

// Handler exposes registration over HTTP
type Handler struct {
	service Registrar
}

func NewHandler(service Registrar) *Handler {
	return &Handler{service: service}
}

// Register handles account registration
// @Summary      Register for the conference
// @Description  Create an account pending verification. A confirmation email is sent in the background.
// @Tags         registration
// @Accept       json
// @Produce      json
// @Param        request body Request true "Registration details"
// @Success      201 {object} Result
// @Failure      400 {object} httputil.ErrorResponse "Validation error naming the field"
// @Failure      409 {object} httputil.ErrorResponse "Identifier already registered"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req Request
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"account_type": req.AccountType})

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		var ve *validate.Error
		if errors.As(err, &ve) {
			logger.Warn("registration failed: validation error", "field", ve.Field)
			httputil.RespondFieldError(w, ve.Message, httputil.CodeValidationFailed, ve.Field, http.StatusBadRequest)
			return
		}
		if field, ok := account.DuplicateField(err); ok {
			logger.Warn("registration failed: duplicate identifier", "field", field)
			msg, known := conflictMessages[field]
			if !known {
				msg = "account already registered"
			}
			httputil.RespondFieldError(w, msg, httputil.CodeAlreadyRegistered, field, http.StatusConflict)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to register", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("account registered", "account_id", result.ID, "role", result.Role)
	httputil.RespondJSON(w, result, http.StatusCreated)
}
