package rest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their config key.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateStruct checks s against its validate tags and joins the
// failures into one error.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("rest: invalid config: %w", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		messages = append(messages, e.Field()+" "+formatValidationError(e))
	}
	return fmt.Errorf("rest: invalid config: %s", strings.Join(messages, "; "))
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "file":
		return "must be an existing file"
	default:
		return "is invalid"
	}
}
