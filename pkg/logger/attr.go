package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AlertID records the alert identifier under the key "alert_id".
// Empty ids produce an empty Attr.
func AlertID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("alert_id", id)
}

// AttemptID records the delivery attempt identifier under the key "attempt_id".
func AttemptID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("attempt_id", id)
}

// RecipientID records the recipient identifier under the key "recipient_id".
func RecipientID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("recipient_id", id)
}

// TemplateID records the template identifier under the key "template_id".
func TemplateID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("template_id", id)
}

// Channel records a delivery channel under the key "channel".
// Accepts any string-based channel type.
func Channel[T ~string](ch T) slog.Attr {
	return slog.String("channel", string(ch))
}

// Provider records the transport provider name under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// MessageID records the provider message identifier under the key "message_id".
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// Status records a lifecycle status under the key "status".
func Status[T ~string](s T) slog.Attr {
	return slog.String("status", string(s))
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
