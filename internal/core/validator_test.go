package core

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrstudio/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testCreateRequest struct {
	Content string `json:"content" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=static dynamic"`
	QRType  string `json:"qrType" validate:"required,qrtype"`
}

type testShortCodeStruct struct {
	Code string `validate:"shortcode"`
}

func TestValidateStruct_Success(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(testCreateRequest{
		Content: "https://example.com",
		Type:    "static",
		QRType:  "URL",
	})
	assert.NoError(t, err)
}

func TestValidateStruct_Failure_ReturnsAppErrorWithFieldDetails(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(testCreateRequest{
		Content: "",
		Type:    "animated",
		QRType:  "URL",
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidation, appErr.Code)
	assert.Equal(t, 400, appErr.HTTPStatus())

	details, ok := appErr.Details["details"].([]ValidationError)
	require.True(t, ok)
	require.Len(t, details, 2)

	// Field names are reported in the camelCase the client sent.
	assert.Equal(t, "content", details[0].Field)
	assert.Equal(t, "required", details[0].Code)
	assert.Equal(t, "type", details[1].Field)
	assert.Equal(t, "oneof", details[1].Code)
}

func TestValidateStruct_QRTypeTag(t *testing.T) {
	v := NewValidator(testLogger())

	for _, valid := range []string{"URL", "TEXT", "WIFI", "VCARD", "EMAIL", "SMS", "PHONE"} {
		err := v.ValidateStruct(testCreateRequest{Content: "x", Type: "static", QRType: valid})
		assert.NoError(t, err, "qrType %s should validate", valid)
	}

	err := v.ValidateStruct(testCreateRequest{Content: "x", Type: "static", QRType: "HOLOGRAM"})
	assert.Error(t, err)
}

func TestValidateStruct_ShortCodeTag(t *testing.T) {
	v := NewValidator(testLogger())

	assert.NoError(t, v.ValidateStruct(testShortCodeStruct{Code: "Ab3dEf90"}))
	assert.Error(t, v.ValidateStruct(testShortCodeStruct{Code: "short"}))
	assert.Error(t, v.ValidateStruct(testShortCodeStruct{Code: "has-dash0"}))
}
