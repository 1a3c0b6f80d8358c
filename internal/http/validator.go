package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"subtrack/internal/core"
)

type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator builds a validator that reports JSON field names and knows
// the billing_cycle and charge_status tags.
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("billing_cycle", func(fl validator.FieldLevel) bool {
		return core.ParseBillingCycle(fl.Field().String()).Known()
	})
	_ = v.RegisterValidation("charge_status", func(fl validator.FieldLevel) bool {
		return core.ParseStatus(fl.Field().String()).Known()
	})
	return &CustomValidator{validator: v}
}

// Validate runs struct tag validation.
func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// fieldErrors flattens validator errors for the response body.
func fieldErrors(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
