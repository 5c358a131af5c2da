package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeValidationFailed   = "validation_failed"
	CodeInternalError      = "internal_error"
	CodeTooManyRequests    = "too_many_requests"
	CodeNotFound           = "not_found"
	CodeInvalidID          = "invalid_id"

	// registration
	CodeAlreadyRegistered = "already_registered"

	// upload
	CodeMissingFile                = "missing_file"
	CodeInvalidFileType            = "invalid_file_type"
	CodeFileTooLarge               = "file_too_large"
	CodeStorageNotConfigured       = "storage_not_configured"
	CodeStorageFolderNotConfigured = "storage_folder_not_configured"
	CodeUploadFailed               = "upload_failed"

	// verification
	CodeAlreadyDecided   = "already_decided"
	CodeDocumentRequired = "document_required"
	CodeInvalidReason    = "invalid_reason"

	// auth
	CodeInvalidCredentials   = "invalid_credentials"
	CodeAccountNotActive     = "account_not_active"
	CodeInvalidAuthHeader    = "invalid_auth_header"
	CodeMissingAuth          = "missing_auth"
	CodeTokenExpired         = "token_expired"
	CodeInvalidToken         = "invalid_token"
	CodeInvalidTokenUserID   = "invalid_token_user_id"
	CodeForbidden            = "forbidden"
	CodeRefreshTokenRequired = "refresh_token_required"
	CodeInvalidRefreshToken  = "invalid_refresh_token"
)
