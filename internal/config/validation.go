package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError represents a configuration validation error.
// It contains the field name and a description of the issue.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the results of a configuration validation.
type ValidationResult struct {
	// Errors contains all validation errors found.
	Errors []ValidationError
	// Warnings contains non-fatal issues such as a very short interval.
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// Error returns a combined error message if there are errors, nil otherwise.
func (vr *ValidationResult) Error() error {
	if len(vr.Errors) == 0 {
		return nil
	}

	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, e.Error())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

// AddError adds a validation error.
func (vr *ValidationResult) AddError(field, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (vr *ValidationResult) AddWarning(field, message string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks cfg against its struct tags and a few cross-field rules.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			result.AddError("config", err.Error())
			return result
		}
		for _, fe := range verrs {
			result.AddError(fieldPath(fe), tagMessage(fe))
		}
	}

	if cfg.Interval > 0 && cfg.Interval < 100*time.Millisecond {
		result.AddWarning("interval",
			fmt.Sprintf("very fast interval %v makes the readings noisy", cfg.Interval))
	}
	if cfg.Source.Kind == SourceSSH {
		if cfg.Source.InsecureHostKey {
			result.AddWarning("source.insecureHostKey", "remote host key is not verified")
		}
		if cfg.Source.CommandTimeout > 0 && cfg.Source.CommandTimeout < cfg.Interval/10 {
			result.AddWarning("source.commandTimeout",
				fmt.Sprintf("timeout %v is short for interval %v", cfg.Source.CommandTimeout, cfg.Interval))
		}
	}
	if cfg.Source.Kind != SourceFile && cfg.Source.Path != "" {
		result.AddWarning("source.path", fmt.Sprintf("ignored for source %q", cfg.Source.Kind))
	}

	return result
}

// ValidateConfig validates cfg and returns an error if it is invalid.
func ValidateConfig(cfg *Config) error {
	return Validate(cfg).Error()
}

// fieldPath turns "Config.Source.Remote" into "source.remote".
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(p[:1]) + p[1:]
	}
	return strings.Join(parts, ".")
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must not be negative, got %v", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "hostname_port":
		return fmt.Sprintf("must be host:port, got %q", fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
