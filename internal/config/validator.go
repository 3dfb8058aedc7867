package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterStructValidation(validatePins, GPIOConfig{})
}

// ConfigError is a validation failure for one field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every failing field.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - " + err.Error() + "\n")
	}
	return sb.String()
}

// Validate checks cfg and returns ValidationErrors describing every
// failing field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	details := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ConfigError{
			Field:   fe.Namespace(),
			Message: formatValidationError(fe),
			Value:   fe.Value(),
		})
	}
	return details
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "ltfield":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "unique_pins":
		return "line offset is used by another function"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// validatePins reports every line offset shared by two functions.
func validatePins(sl validator.StructLevel) {
	g := sl.Current().Interface().(GPIOConfig)
	pins := []struct {
		field string
		name  string
		value int
	}{
		{"Red", "red", g.Red},
		{"Green", "green", g.Green},
		{"ButtonA", "button_a", g.ButtonA},
		{"ButtonB", "button_b", g.ButtonB},
		{"BuzzerA", "buzzer_a", g.BuzzerA},
		{"BuzzerB", "buzzer_b", g.BuzzerB},
	}
	seen := make(map[int]bool, len(pins))
	for _, p := range pins {
		if seen[p.value] {
			sl.ReportError(p.value, p.name, p.field, "unique_pins", "")
		}
		seen[p.value] = true
	}
}
