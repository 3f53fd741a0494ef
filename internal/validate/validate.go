package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Fields validates s and returns json field name -> messages for every failed
// rule, or nil when s is valid.
func Fields(s interface{}) map[string][]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"non_field_errors": {err.Error()}}
	}

	fields := make(map[string][]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = append(fields[e.Field()], message(e))
	}
	return fields
}

// Struct is Fields wrapped as a *domain.ValidationError.
func Struct(s interface{}) error {
	fields := Fields(s)
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, msgs := range fields {
		out[k] = k + ": " + strings.Join(msgs, " ")
	}
	return &domain.ValidationError{Fields: out}
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Ensure this field has at least " + e.Param() + " characters."
	case "max":
		return "Ensure this field has no more than " + e.Param() + " characters."
	case "oneof":
		return "Must be one of: " + e.Param() + "."
	case "numeric":
		return "A valid number is required."
	case "gt":
		return "Ensure this value is greater than " + e.Param() + "."
	case "gte":
		return "Ensure this value is greater than or equal to " + e.Param() + "."
	case "lte":
		return "Ensure this value is less than or equal to " + e.Param() + "."
	}
	return "Invalid value."
}
