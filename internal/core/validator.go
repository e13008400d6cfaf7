package core

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"qrstudio/internal/shortcode"
	"qrstudio/internal/types"
)

// ValidationError describes a single field-level violation, serialized into
// the 400 response's details array.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the domain-specific rules
// used by request structs.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// shortcode: fixed-length [A-Za-z0-9] routing token.
	_ = v.RegisterValidation("shortcode", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != shortcode.DefaultLength {
			return false
		}
		for _, c := range s {
			if !strings.ContainsRune(shortcode.Alphabet, c) {
				return false
			}
		}
		return true
	})

	// qrtype: one of the semantic content subtypes.
	_ = v.RegisterValidation("qrtype", func(fl validator.FieldLevel) bool {
		s := types.ContentType(fl.Field().String())
		for _, ct := range types.AllContentTypes {
			if s == ct {
				return true
			}
		}
		return false
	})

	// eventtype: one of the webhook event types.
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		s := types.EventType(fl.Field().String())
		for _, et := range types.AllEventTypes {
			if s == et {
				return true
			}
		}
		return false
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct runs struct validation and converts violations into a
// single AppError whose details carry the per-field list, matching the 400
// wire shape.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid value passed to validator", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "unexpected validation failure", err)
	}

	details := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ValidationError{
			Field:   fieldName(fe),
			Code:    fe.Tag(),
			Message: messageFor(fe),
		})
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidation,
		"Validation error",
		err,
		map[string]any{"details": details},
	)
}

// fieldName lowercases the first rune of the struct field name so errors
// refer to the JSON field as clients sent it (camelCase contract).
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// messageFor renders a human-readable message for the common tags; the raw
// tag name is good enough for the rest.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "max":
		return "exceeds maximum length or value of " + fe.Param()
	case "min":
		return "below minimum length or value of " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "qrtype":
		return "unsupported qrType"
	case "shortcode":
		return "must be an 8-character alphanumeric code"
	case "hexcolor":
		return "must be a hex color value"
	case "eventtype":
		return "unsupported event type"
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
