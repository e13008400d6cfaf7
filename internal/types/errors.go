package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers MUST use these constants instead of hardcoded strings.
//
// The limit codes are uppercase because they are part of the public wire
// contract: clients key upgrade prompts off the literal values
// LIMIT_EXCEEDED and DYNAMIC_LIMIT_EXCEEDED.
const (
	// Validation (400)
	ErrCodeValidation             ErrorCode = "validation_error"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationExpiry       ErrorCode = "validation_invalid_expiry"
	ErrCodeValidationBatchEmpty   ErrorCode = "validation_empty_batch"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired ErrorCode = "auth_token_expired"
	ErrCodeAuthKeyRevoked   ErrorCode = "auth_api_key_revoked"

	// Quota breach (403)
	ErrCodeLimitExceeded        ErrorCode = "LIMIT_EXCEEDED"
	ErrCodeDynamicLimitExceeded ErrorCode = "DYNAMIC_LIMIT_EXCEEDED"
	ErrCodeBulkLimitExceeded    ErrorCode = "BULK_LIMIT_EXCEEDED"
	ErrCodeTeamLimitExceeded    ErrorCode = "TEAM_LIMIT_EXCEEDED"
	ErrCodeAPIKeyLimitExceeded  ErrorCode = "API_KEY_LIMIT_EXCEEDED"

	// Permission (403)
	ErrCodePermissionDenied   ErrorCode = "permission_denied"
	ErrCodePasswordRequired   ErrorCode = "permission_password_required"
	ErrCodePasswordIncorrect  ErrorCode = "permission_password_incorrect"

	// Not Found (404)
	ErrCodeNotFoundQRCode       ErrorCode = "not_found_qr_code"
	ErrCodeNotFoundUser         ErrorCode = "not_found_user"
	ErrCodeNotFoundCampaign     ErrorCode = "not_found_campaign"
	ErrCodeNotFoundTeamMember   ErrorCode = "not_found_team_member"
	ErrCodeNotFoundAPIKey       ErrorCode = "not_found_api_key"
	ErrCodeNotFoundShortCode    ErrorCode = "not_found_short_code"
	ErrCodeNotFoundSubscription ErrorCode = "not_found_webhook_subscription"

	// Gone (410)
	ErrCodeExpiredQRCode ErrorCode = "gone_qr_code_expired"

	// Conflict (409)
	ErrCodeConflictShortCode ErrorCode = "conflict_short_code_taken"
	ErrCodeConflictEmail     ErrorCode = "conflict_email_exists"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamWebhook    ErrorCode = "upstream_webhook_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasSuffix(s, "_EXCEEDED"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "gone_"):
		return http.StatusGone // 410
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// IsQuotaCode reports whether the code is one of the quota-breach codes
// that carry current/limit/percentage details on the wire.
func (c ErrorCode) IsQuotaCode() bool {
	return strings.HasSuffix(string(c), "_EXCEEDED")
}

// AppError is the standard application error type used throughout the
// service. All domain and handler errors should be expressed as AppError to
// enable consistent error formatting and HTTP status mapping.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
