package validator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed matches every ValidationErrors value under errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationErrors is a collection of field errors and itself an error.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidationFailed) match any ValidationErrors.
func (ve ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed
}

func (ve *ValidationErrors) Add(err ValidationError) {
	*ve = append(*ve, err)
}

func (ve ValidationErrors) Has(field string) bool {
	for _, err := range ve {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the distinct invalid field names in order of appearance.
func (ve ValidationErrors) Fields() []string {
	var fields []string
	seen := make(map[string]bool)
	for _, err := range ve {
		if !seen[err.Field] {
			fields = append(fields, err.Field)
			seen[err.Field] = true
		}
	}
	return fields
}

// Rule is a lazily evaluated check with the error to report when it fails.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply evaluates all rules and returns ValidationErrors for the failed ones,
// or nil.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, rule := range rules {
		if !rule.Check() {
			errs = append(errs, rule.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// When includes rules only if cond holds, for optional fields.
func When(cond bool, rules ...Rule) Rule {
	return Rule{
		Check: func() bool {
			if !cond {
				return true
			}
			for _, r := range rules {
				if !r.Check() {
					return false
				}
			}
			return true
		},
		Error: firstError(rules),
	}
}

func firstError(rules []Rule) ValidationError {
	if len(rules) == 0 {
		return ValidationError{}
	}
	return rules[0].Error
}

// ExtractValidationErrors returns the ValidationErrors wrapped in err, if any.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}
