package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"studiopulse/internal/types"
)

// Validator wraps go-playground/validator so handlers get AppErrors with
// per-field details instead of raw validation errors.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports field names from json tags,
// matching what API clients actually sent.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v}
}

// ValidateStruct validates a request struct against its validate tags. On
// failure it returns a *types.AppError with code invalid_field (400) whose
// Details map each offending field to the rule it violated.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[fe.Field()] = describeRule(fe)
	}

	appErr := types.NewAppError(types.ErrCodeValidationField, "request validation failed", err)
	appErr.Details = details
	return appErr
}

// describeRule renders a human-readable reason for one failed rule.
func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		return "failed rule: " + fe.Tag()
	}
}
