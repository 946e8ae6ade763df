package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/requestid"
	"github.com/xpertseller/alertkit/svc/alerting"
)

// Envelope wraps every JSON body the API writes.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// httpError is an error with a fixed status and code, raised by the API
// layer itself (bad bodies, bad signatures).
type httpError struct {
	status  int
	code    string
	message string
}

func (e httpError) Error() string { return e.message }

var (
	errBadBody       = httpError{http.StatusBadRequest, "invalid_request", "request body is not valid JSON"}
	errBadForm       = httpError{http.StatusBadRequest, "invalid_request", "request body is not a valid form"}
	errBadWindow     = httpError{http.StatusBadRequest, "invalid_request", "window_days must be an integer between 1 and 365"}
	errBadSignature  = httpError{http.StatusUnauthorized, "invalid_signature", "signature verification failed"}
	errUnauthorized  = httpError{http.StatusUnauthorized, "unauthorized", "credentials required"}
	errNotConfigured = httpError{http.StatusNotFound, "not_found", "callback not configured"}
)

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

// classify maps an error to its status and public detail.
func classify(err error) (int, *ErrorDetail) {
	var herr httpError
	if errors.As(err, &herr) {
		return herr.status, &ErrorDetail{Code: herr.code, Message: herr.message}
	}

	var verr *alerting.ValidationError
	if errors.As(err, &verr) {
		d := &ErrorDetail{Code: "validation_error", Message: verr.Error()}
		if len(verr.Fields) > 0 {
			d.Details = make(map[string][]string, len(verr.Fields))
			for _, f := range verr.Fields {
				d.Details[f.Field] = append(d.Details[f.Field], f.Message)
			}
		}
		return http.StatusBadRequest, d
	}

	switch {
	case errors.Is(err, alerting.ErrAlertNotFound),
		errors.Is(err, alerting.ErrAttemptNotFound),
		errors.Is(err, alerting.ErrTemplateNotFound),
		errors.Is(err, alerting.ErrRecipientNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "not_found", Message: err.Error()}
	case errors.Is(err, alerting.ErrInvalidTransition):
		return http.StatusConflict, &ErrorDetail{Code: "invalid_transition", Message: err.Error()}
	case errors.Is(err, alerting.ErrConcurrentUpdate):
		return http.StatusConflict, &ErrorDetail{Code: "conflict", Message: err.Error()}
	case errors.Is(err, alerting.ErrChannelMismatch):
		return http.StatusConflict, &ErrorDetail{Code: "channel_mismatch", Message: err.Error()}
	}
	return http.StatusInternalServerError, &ErrorDetail{
		Code:    "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.LogAttrs(r.Context(), level, "request error",
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	writeJSON(w, status, Envelope{Error: detail})
}
