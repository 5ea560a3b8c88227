package rest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func ValidateStruct(payload any) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			fieldName := fieldError.Field()
			switch fieldError.Tag() {
			case "gt":
				errors[fieldName] = fmt.Sprintf("The %s must be greater than %s.", fieldName, fieldError.Param())
			case "gte":
				errors[fieldName] = fmt.Sprintf("The %s must be at least %s.", fieldName, fieldError.Param())
			case "oneof":
				errors[fieldName] = fmt.Sprintf("The %s must be one of: %s.", fieldName, fieldError.Param())
			default:
				errors[fieldName] = fmt.Sprintf("The %s field is invalid.", fieldName)
			}
		}
	}

	return errors
}
