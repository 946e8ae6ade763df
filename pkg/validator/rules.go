package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	e164Regex  = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "is required", Code: "required"},
	}
}

func MaxLen(field, value string, limit int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= limit },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", limit), Code: "max_length"},
	}
}

// OneOf checks that value is one of options.
func OneOf[T comparable](field string, value T, options []T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(options, value) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", options), Code: "one_of"},
	}
}

// Each checks every element of values with check.
func Each[T any](field string, values []T, check func(T) bool, message string) Rule {
	return Rule{
		Check: func() bool {
			for _, v := range values {
				if !check(v) {
					return false
				}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: message, Code: "each"},
	}
}

func Range[T ~int | ~int64 | ~float64](field string, value, minimum, maximum T) Rule {
	return Rule{
		Check: func() bool { return value >= minimum && value <= maximum },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be between %v and %v", minimum, maximum), Code: "range"},
	}
}

func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool { return len(value) <= 254 && emailRegex.MatchString(value) },
		Error: ValidationError{Field: field, Message: "must be a valid email address", Code: "email"},
	}
}

// ValidPhone checks an E.164 number such as +14155550100.
func ValidPhone(field, value string) Rule {
	return Rule{
		Check: func() bool { return e164Regex.MatchString(value) },
		Error: ValidationError{Field: field, Message: "must be an E.164 phone number", Code: "phone"},
	}
}

// ValidURL checks an absolute http or https URL.
func ValidURL(field, value string) Rule {
	return Rule{
		Check: func() bool {
			u, err := url.Parse(value)
			return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		},
		Error: ValidationError{Field: field, Message: "must be an absolute http(s) URL", Code: "url"},
	}
}

// After checks that value is strictly after ref.
func After(field string, value, ref time.Time) Rule {
	return Rule{
		Check: func() bool { return value.After(ref) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be after %s", ref.Format(time.RFC3339)), Code: "after"},
	}
}
