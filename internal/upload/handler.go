package upload

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/storage"
)

const fileField = "file"

// room for multipart boundaries and headers on top of the file itself
const multipartOverhead = 64 << 10

const (
	msgMissingFile         = "No file uploaded"
	msgInvalidType         = "Invalid file type. Only PDF, JPG, and PNG are allowed."
	msgTooLarge            = "File too large. Maximum size is 10MB."
	msgNotConfigured       = "Storage not configured. Please contact administrator."
	msgFolderNotConfigured = "Storage folder not configured. Please contact administrator."
	msgUploadFailed        = "Failed to upload file. Please try again."
)

// Handler exposes document upload over HTTP
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// VerifyDoc handles eligibility document uploads
// @Summary      Upload a verification document
// @Description  Upload a student or identity document (PDF, JPG, PNG, at most 10MB)
// @Tags         upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Document"
// @Success      200 {object} Result
// @Failure      400 {object} httputil.ErrorResponse "Missing file, invalid type or too large"
// @Failure      500 {object} httputil.ErrorResponse "Storage not configured or upload failed"
// @Router       /upload/verify-doc [post]
func (h *Handler) VerifyDoc(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, storage.DestinationVerification)
}

// Abstract handles abstract submissions
// @Summary      Upload an abstract
// @Description  Upload an abstract file (PDF, JPG, PNG, at most 10MB)
// @Tags         upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Abstract"
// @Success      200 {object} Result
// @Failure      400 {object} httputil.ErrorResponse "Missing file, invalid type or too large"
// @Failure      500 {object} httputil.ErrorResponse "Storage not configured or upload failed"
// @Router       /upload/abstract [post]
func (h *Handler) Abstract(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, storage.DestinationAbstract)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, dest storage.Destination) {
	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"destination": string(dest)})

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxSize()+multipartOverhead)

	part, err := filePart(r)
	if err != nil {
		if isTooLarge(err) {
			logger.Warn("upload rejected: body too large")
			httputil.RespondErrorWithCode(w, msgTooLarge, httputil.CodeFileTooLarge, http.StatusBadRequest)
			return
		}
		logger.Warn("upload rejected: no file part", "error", err.Error())
		httputil.RespondErrorWithCode(w, msgMissingFile, httputil.CodeMissingFile, http.StatusBadRequest)
		return
	}
	defer part.Close()

	filename := part.FileName()
	result, err := h.service.Upload(r.Context(), dest, filename, part.Header.Get("Content-Type"), part)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidType):
			logger.Warn("upload rejected: invalid type", "error", err.Error())
			httputil.RespondErrorWithCode(w, msgInvalidType, httputil.CodeInvalidFileType, http.StatusBadRequest)
		case errors.Is(err, ErrTooLarge) || isTooLarge(err):
			logger.Warn("upload rejected: file too large")
			httputil.RespondErrorWithCode(w, msgTooLarge, httputil.CodeFileTooLarge, http.StatusBadRequest)
		case errors.Is(err, storage.ErrFolderNotConfigured):
			logger.Error("upload failed: storage folder not configured", "error", err.Error())
			httputil.RespondErrorWithCode(w, msgFolderNotConfigured, httputil.CodeStorageFolderNotConfigured, http.StatusInternalServerError)
		case errors.Is(err, storage.ErrNotConfigured):
			logger.Error("upload failed: storage not configured", "error", err.Error())
			httputil.RespondErrorWithCode(w, msgNotConfigured, httputil.CodeStorageNotConfigured, http.StatusInternalServerError)
		default:
			logger.Error("upload failed", "error", err.Error())
			httputil.RespondErrorWithCode(w, msgUploadFailed, httputil.CodeUploadFailed, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("file uploaded", "filename", filename, "url", result.URL)
	httputil.RespondJSON(w, result, http.StatusOK)
}

// filePart streams the multipart body up to the first part named "file"
// that carries a filename. Nothing before it is buffered to disk.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrMissingFile
			}
			return nil, err
		}
		if part.FormName() == fileField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
