package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"vetclinic/pkg/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct checks validate tags and reports the first failure as a
// domain.ValidationError keyed by the json field name.
func validateStruct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	return domain.ValidationError{Field: fe.Field(), Message: describeFieldError(fe)}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// moneyPlaces matches the NUMERIC(12,2) money columns.
const moneyPlaces = 2

// requireMoney rejects negative amounts and amounts with more than two
// decimal places, which a store would otherwise round.
func requireMoney(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return domain.ValidationError{Field: field, Message: "must not be negative"}
	}
	if !value.Equal(value.Round(moneyPlaces)) {
		return domain.ValidationError{Field: field, Message: fmt.Sprintf("must have at most %d decimal places", moneyPlaces)}
	}
	return nil
}
