package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// MaxIdentifierLength bounds the text searched for an identifier.
const MaxIdentifierLength = 2048

var (
	// ErrValidation wraps request validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps JSON and query decoding failures.
	ErrBinding = errors.New("binding failed")
)

// Validator returns the request validator. Field errors are named after
// the json tag.
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	for tag, fn := range map[string]validator.Func{
		"notempty":   func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
		"dateformat": isDateFormat,
		"identifier": isIdentifier,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering %s validation: %v", tag, err))
		}
	}

	return v
})

// isDateFormat accepts an empty format, meaning the server default, or one
// with at least one % directive.
func isDateFormat(fl validator.FieldLevel) bool {
	s := fl.Field().String()

	return s == "" || strings.Contains(s, "%")
}

// isIdentifier accepts printable text up to MaxIdentifierLength bytes.
// Identifiers are pasted from pages, so spaces and punctuation are fine.
func isIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) > MaxIdentifierLength {
		return false
	}

	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r'
	}) < 0
}

// Validate runs the struct validations on v.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var fe validator.ValidationErrors

	return errors.As(err, &fe)
}

// ValidationErrors maps each failing field to a readable message. Slice
// elements are keyed like identifiers[2].
func ValidationErrors(err error) map[string]string {
	out := map[string]string{}

	var fe validator.ValidationErrors
	if !errors.As(err, &fe) {
		return out
	}

	for _, e := range fe {
		out[e.Field()] = fieldMessage(e)
	}

	return out
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "notempty":
		return "must not be empty"
	case "url":
		return "must be a valid URL"
	case "dateformat":
		return "must contain a strftime directive such as %Y"
	case "identifier":
		return fmt.Sprintf("must be printable text of at most %d bytes", MaxIdentifierLength)
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "min":
		return "must be at least " + e.Param() + unit(e.Kind())
	case "max":
		return "must be at most " + e.Param() + unit(e.Kind())
	default:
		return "failed validation: " + e.Tag()
	}
}

// unit names what min and max count for k.
func unit(k reflect.Kind) string {
	switch k { //nolint:exhaustive // other kinds are compared by value
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	default:
		return ""
	}
}
