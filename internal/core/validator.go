package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"relaunch/internal/types"
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the dispatch API's custom
// tags: email_provider and dispatch_mode.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator. Field names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("email_provider", func(fl validator.FieldLevel) bool {
		_, ok := types.ParseEmailProvider(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("dispatch_mode", func(fl validator.FieldLevel) bool {
		return types.DispatchMode(fl.Field().String()).Valid()
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s. On failure it returns an *types.AppError whose
// code comes from the first failed rule; every failure is listed under the
// "validation_errors" detail.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("validator misuse", "error", err.Error())
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return types.NewAppErrorWithDetails(
		types.ErrorCode(fields[0].Code),
		fields[0].Message,
		err,
		map[string]any{"validation_errors": fields},
	)
}

func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "email":
		return string(types.ErrCodeValidationInvalidEmail)
	case "email_provider":
		return string(types.ErrCodeValidationInvalidProvider)
	case "dispatch_mode":
		return string(types.ErrCodeValidationInvalidMode)
	default:
		return "validation_invalid_field"
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "email_provider":
		return "Invalid email provider"
	case "dispatch_mode":
		return `mode must be "all" or "single"`
	default:
		return fe.Field() + " is invalid"
	}
}
