package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"rpimon/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	v.RegisterValidation("metricpath", func(fl validator.FieldLevel) bool {
		return domain.MetricPath(fl.Field().String()).Valid()
	})

	return v
}

// Validate checks a sampling configuration. Failures are reported as a
// *domain.ConfigError keyed by field name.
func (s Sampling) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ConfigError{Fields: map[string]string{"_error": err.Error()}}
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[fieldKey(e)] = messageFor(e)
	}

	return &domain.ConfigError{Fields: fields}
}

func fieldKey(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func messageFor(e validator.FieldError) string {
	switch e.Tag() {
	case "metricpath":
		return "must be a non-empty dot-separated path without empty segments"
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	}
	return "is invalid"
}
