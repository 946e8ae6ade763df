package alerting

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("alerting: validation failed")
	ErrUnknownChannel      = errors.New("alerting: unknown channel")
	ErrTemplateNotFound    = errors.New("alerting: template not found")
	ErrRecipientNotFound   = errors.New("alerting: recipient not found")
	ErrAlertNotFound       = errors.New("alerting: alert not found")
	ErrAttemptNotFound     = errors.New("alerting: delivery attempt not found")
	ErrRateLimitExceeded   = errors.New("alerting: rate limit exceeded")
	ErrChannelUnavailable  = errors.New("alerting: channel unavailable")
	ErrProvider            = errors.New("alerting: provider error")
	ErrAlertExpired        = errors.New("alerting: alert expired")
	ErrInvalidTransition   = errors.New("alerting: invalid status transition")
	ErrAlreadyExists       = errors.New("alerting: already exists")
	ErrConcurrentUpdate    = errors.New("alerting: concurrent update")
	ErrChannelMismatch     = errors.New("alerting: event channel does not match attempt")
	ErrNoTransport         = errors.New("alerting: no transport registered")
	ErrRecommendationsDown = errors.New("alerting: recommendations unavailable")
)

// FieldError names one invalid input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a request before anything is recorded.
// errors.Is(err, ErrValidation) matches it, as does the wrapped cause.
type ValidationError struct {
	Fields []FieldError
	Cause  error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Cause != nil {
			return ErrValidation.Error() + ": " + e.Cause.Error()
		}
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func newValidationError(cause error, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}},
		Cause:  cause,
	}
}

// IsValidationError reports whether err rejects the request as invalid.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// SkipReason explains why a channel produced no attempt.
type SkipReason string

const (
	SkipRateLimited SkipReason = "rate_limited"
	SkipUnavailable SkipReason = "unavailable"
	SkipExpired     SkipReason = "expired"
	// SkipCancelled marks channels not reached because the caller went away.
	SkipCancelled SkipReason = "cancelled"
)
