package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() (*requestValidator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("hhmm", validateClock); err != nil {
		return nil, fmt.Errorf("register hhmm validation: %w", err)
	}
	return &requestValidator{validate: v}, nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := model.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

// Struct validates req and reports the first failing field as a
// *model.ValidationError named after its JSON key.
func (rv *requestValidator) Struct(req any) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &model.ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	return &model.ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "hhmm":
		return "must be a time of day as HH:MM"
	case "uuid":
		return "must be a valid id"
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
