package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apperrors "parkshare/pkg/errors"
)

var (
	reParkingCode = regexp.MustCompile(`^F-[A-Z0-9]{6}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("parkingcode", func(fl validator.FieldLevel) bool {
		return reParkingCode.MatchString(fl.Field().String())
	})
	return v
}

// Validator exposes the shared instance so request payloads use the same custom tags.
func Validator() *validator.Validate {
	return validate
}

func checkVar(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("%s %s", field, describe(err)))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "notblank":
			msgs = append(msgs, "must not be blank")
		case "max":
			msgs = append(msgs, fmt.Sprintf("must be at most %s characters", fe.Param()))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("must be at least %s", fe.Param()))
		case "parkingcode":
			msgs = append(msgs, "must look like F-XXXXXX")
		default:
			msgs = append(msgs, fmt.Sprintf("failed %s validation", fe.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}

// ValidateStruct checks a tagged payload against the shared validator.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.InvalidInput(err.Error())
		}
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = describe(validator.ValidationErrors{fe})
		}
		return apperrors.Validation("request validation failed", details)
	}
	return nil
}
