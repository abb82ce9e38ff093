package application

import (
	"errors"
	"reflect"
	"strings"

	"warehouse-channel-sync/internal/domain"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs tag validation and converts the first failure into a ConfigError
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.SplitN(fe.Namespace(), ".", 2)
		name := fe.Field()
		if len(field) == 2 {
			name = field[1]
		}
		return &domain.ConfigError{Field: name, Reason: validationReason(fe)}
	}
	return &domain.ConfigError{Reason: err.Error()}
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hostname", "fqdn":
		return "must be a host name"
	case "url":
		return "must be a URL"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
