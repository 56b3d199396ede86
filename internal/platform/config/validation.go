package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their koanf keys, the same keys the YAML files
// and APP_ variables use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}

		return name
	})

	_ = v.RegisterValidation("dateformat", func(fl validator.FieldLevel) bool {
		return strings.Contains(fl.Field().String(), "%")
	})

	v.RegisterStructValidation(validateResolver, ResolverConfig{})
	v.RegisterStructValidation(validateRetry, RetryConfig{})

	return v
}

// batch_limit is the number of identifiers in flight, so it cannot exceed
// the batch size.
func validateResolver(sl validator.StructLevel) {
	r, _ := sl.Current().Interface().(ResolverConfig)
	if r.MaxBatchSize > 0 && r.BatchLimit > r.MaxBatchSize {
		sl.ReportError(r.BatchLimit, "batch_limit", "BatchLimit", "ltefield", "max_batch_size")
	}
}

func validateRetry(sl validator.StructLevel) {
	r, _ := sl.Current().Interface().(RetryConfig)
	if r.MaxInterval > 0 && r.MaxInterval < r.InitialInterval {
		sl.ReportError(r.MaxInterval, "max_interval", "MaxInterval", "gtefield", "initial_interval")
	}
}

// Validate checks the configuration. A service must not start with an
// invalid one.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

func formatFieldError(e validator.FieldError) string {
	field := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return field + " must be a valid URL"
	case "hostname_port":
		return field + " must be a host:port pair"
	case "dateformat":
		return field + " must contain a % directive"
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, e.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// formatFieldPath turns "Config.server.port" into "server.port".
func formatFieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return strings.ToLower(namespace)
	}

	return strings.ToLower(path)
}
