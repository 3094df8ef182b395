package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeValidationFailed   = "validation_failed"
	CodeInternalError      = "internal_error"
	CodeTooManyRequests    = "too_many_requests"
	CodeCooldownActive     = "cooldown_active"

	// verification cycle
	CodeNotFound       = "not_found"
	CodeNoPendingCycle = "no_pending_cycle"
	CodeInvalidCode    = "invalid_code"
	CodeCodeExpired    = "code_expired"
	CodeDeliveryFailed = "delivery_failed"

	// accounts and sessions
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotVerified   = "email_not_verified"
	CodeAlreadyVerified    = "already_verified"
	CodeEmailAlreadyExists = "email_already_exists"
	CodeUsernameTaken      = "username_taken"
	CodeMissingAuth        = "missing_auth"
	CodeInvalidAuthHeader  = "invalid_auth_header"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeForbidden          = "forbidden"
)
