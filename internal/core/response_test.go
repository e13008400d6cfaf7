package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrstudio/internal/types"
)

func TestError_GenericError_Returns500WithoutLeaking(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rr, req, errors.New("pq: connection refused on 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "an unexpected error occurred", resp.Error)
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestError_AppError_UsesCodeStatusAndMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rr, req, types.NewAppError(types.ErrCodeNotFoundQRCode, "QR code not found", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "QR code not found", resp.Error)
}

func TestError_QuotaCode_WritesFlatQuotaShape(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/qr-codes", nil)

	appErr := types.NewAppErrorWithDetails(
		types.ErrCodeLimitExceeded,
		"QR code limit reached for your plan",
		nil,
		map[string]any{"current": 50, "limit": 50, "percentage": 100.0},
	)
	Error(rr, req, appErr)

	assert.Equal(t, http.StatusForbidden, rr.Code)

	var resp QuotaExceededResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "LIMIT_EXCEEDED", resp.Error)
	assert.Equal(t, "QR code limit reached for your plan", resp.Message)
	assert.Equal(t, 50, resp.Current)
	assert.Equal(t, 50, resp.Limit)
	assert.InDelta(t, 100.0, resp.Percentage, 0.001)
}

func TestError_ValidationDetails_WritesFieldList(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	appErr := types.NewAppErrorWithDetails(
		types.ErrCodeValidation,
		"Validation error",
		nil,
		map[string]any{"details": []ValidationError{
			{Field: "content", Code: "required", Message: "field is required"},
		}},
	)
	Error(rr, req, appErr)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Validation error", resp.Error)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "content", resp.Details[0].Field)
}

func TestDecodeJSON_Success(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"menu"}`))
	rr := httptest.NewRecorder()

	require.NoError(t, DecodeJSON(rr, req, &dst))
	assert.Equal(t, "menu", dst.Name)
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bogus":1}`))
	rr := httptest.NewRecorder()

	err := DecodeJSON(rr, req, &dst)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidation, appErr.Code)
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	var dst struct{}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
	rr := httptest.NewRecorder()

	err := DecodeJSON(rr, req, &dst)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
}

func TestDecodeJSON_TrailingData(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	rr := httptest.NewRecorder()

	require.Error(t, DecodeJSON(rr, req, &dst))
}
