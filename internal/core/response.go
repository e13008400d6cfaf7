package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"qrstudio/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20 // 1 MB

// ErrorResponse is the generic error body: {"error": "..."}.
// The flat shape (rather than a nested envelope) is part of the public wire
// contract the dashboard frontend consumes.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse is the 400 body carrying per-field violations.
type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details []ValidationError `json:"details"`
}

// QuotaExceededResponse is the 403 body for quota breaches. It carries
// machine-readable current/limit/percentage so the client can render a
// precise upgrade prompt.
type QuotaExceededResponse struct {
	Error      string  `json:"error"`
	Message    string  `json:"message"`
	Current    int     `json:"current"`
	Limit      int     `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "failed to marshal response"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. It inspects the error chain:
//   - Quota-breach AppErrors become the flat QuotaExceededResponse shape.
//   - Validation AppErrors carrying field violations become the
//     ValidationErrorResponse shape.
//   - Other AppErrors use their code's HTTP status and message.
//   - Generic (non-AppError) errors become a 500 with a constant message;
//     the underlying error is never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		JSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "an unexpected error occurred"})
		return
	}

	status := appErr.HTTPStatus()

	if appErr.Code.IsQuotaCode() {
		JSON(w, r, status, QuotaExceededResponse{
			Error:      string(appErr.Code),
			Message:    appErr.Message,
			Current:    detailInt(appErr.Details, "current"),
			Limit:      detailInt(appErr.Details, "limit"),
			Percentage: detailFloat(appErr.Details, "percentage"),
		})
		return
	}

	if fieldErrs, ok := appErr.Details["details"].([]ValidationError); ok {
		JSON(w, r, status, ValidationErrorResponse{
			Error:   "Validation error",
			Details: fieldErrs,
		})
		return
	}

	JSON(w, r, status, ErrorResponse{Error: appErr.Message})
}

// detailInt extracts an int from AppError details regardless of whether it
// was stored as int or float64 (JSON round-trips produce the latter).
func detailInt(details map[string]any, key string) int {
	switch v := details[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func detailFloat(details map[string]any, key string) float64 {
	switch v := details[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// DecodeJSON reads the request body into dst, enforcing:
//   - A maximum body size of 1 MB to prevent abuse.
//   - DisallowUnknownFields to enforce strict JSON contracts.
//
// It returns a *types.AppError with a validation code (400) on syntax
// errors, unknown fields, oversized bodies, empty bodies, or trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	// Ensure the body contains only a single JSON value.
	if dec.More() {
		return types.NewAppError(
			types.ErrCodeValidation,
			"request body must contain a single JSON object",
			nil,
		)
	}

	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidation, "request body must not exceed 1MB", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidation, "malformed JSON in request body", err)
	}

	var unmarshalTypeErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidation,
			"invalid value for field "+unmarshalTypeErr.Field,
			err,
			map[string]any{"field": unmarshalTypeErr.Field, "expected": unmarshalTypeErr.Type.String()},
		)
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(
			types.ErrCodeValidation,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "),
			err,
		)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidation, "request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidation, "invalid JSON in request body", err)
}
