// Package validation holds the shared struct validator used by handlers and
// services alike.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json field names so error payloads line up with request bodies
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	// Compare decimals numerically for gte/lte/gt/lt
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// FieldError is one failed rule, keyed by json field name
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Struct validates v against its validate tags
func Struct(v interface{}) error {
	return validate.Struct(v)
}

// Fields converts a validator error into field errors. Other errors yield nil.
func Fields(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, FieldError{
			Field:   e.Field(),
			Message: message(e),
		})
	}
	return fields
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "url":
		return "Invalid URL"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	default:
		return "Invalid value"
	}
}
