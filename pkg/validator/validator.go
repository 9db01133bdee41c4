// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vulndeck/api/pkg/domain/cvss"
	"github.com/vulndeck/api/pkg/domain/finding"
)

// cveIDRegex validates CVE IDs: CVE-YYYY-NNNNN (4+ digits)
var cveIDRegex = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("severity", validateSeverity)
	_ = v.RegisterValidation("apply_mode", validateApplyMode)
	_ = v.RegisterValidation("finding_view", validateFindingView)
	_ = v.RegisterValidation("cvss_vector", validateCVSSVector)
	_ = v.RegisterValidation("cve_id", validateCVEID)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateSeverity validates that a string is a valid finding Severity.
func validateSeverity(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := finding.ParseSeverity(value)
	return err == nil
}

// validateApplyMode validates that a string is a valid template ApplyMode.
func validateApplyMode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := finding.ParseApplyMode(value)
	return err == nil
}

// validateFindingView validates that a string is a valid listing View.
func validateFindingView(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := finding.ParseView(value)
	return err == nil
}

// validateCVSSVector validates that a string parses as a supported CVSS vector.
func validateCVSSVector(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := cvss.Parse(value)
	return err == nil
}

// validateCVEID validates that a string is a valid CVE ID (CVE-YYYY-NNNNN).
func validateCVEID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return cveIDRegex.MatchString(strings.ToUpper(value))
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "url":
		return "must be a valid URL"
	case "severity":
		return fmt.Sprintf("must be one of: %s", formatSeverities())
	case "apply_mode":
		return "must be one of: replace, merge"
	case "finding_view":
		return "must be one of: all, open, closed, accepted"
	case "cvss_vector":
		return "must be a valid CVSS v3.0, v3.1 or v4.0 vector"
	case "cve_id":
		return "must be a valid CVE ID (e.g., CVE-2024-12345)"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// formatSeverities returns a comma-separated list of valid severities.
func formatSeverities() string {
	severities := finding.AllSeverities()
	strs := make([]string, len(severities))
	for i, s := range severities {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}
