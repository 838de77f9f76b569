// Package validation checks request payloads before they reach a service.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"scholarpay/internal/models"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects every failing field of one payload.
type Errors []ValidationError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Fields maps json field names to messages.
func (e Errors) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		out[fe.Field] = fe.Message
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("fee_type", func(fl validator.FieldLevel) bool {
		_, err := models.ParseFeeType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("rail", func(fl validator.FieldLevel) bool {
		_, err := models.ParsePaymentRail(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates s against its `validate` tags. It returns Errors when any
// field fails.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt", "gte", "min":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "fee_type":
		return "must be one of selection_process, application_fee, scholarship_fee, i20_control_fee"
	case "rail":
		return "must be card or instant_transfer"
	default:
		return "is invalid"
	}
}
