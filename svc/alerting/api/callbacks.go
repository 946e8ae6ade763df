package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/webhook"
	"github.com/xpertseller/alertkit/svc/alerting"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// callbackAck is the body returned to providers.
type callbackAck struct {
	Result    string `json:"result"`
	AttemptID string `json:"attempt_id,omitempty"`
}

const (
	ackRecorded = "recorded"
	ackIgnored  = "ignored"
)

func (h *Handler) twilioCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbacks.TwilioAuthToken == "" {
		h.writeError(w, r, errNotConfigured)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, errors.Join(errBadForm, err))
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	validator := twilioclient.NewRequestValidator(h.callbacks.TwilioAuthToken)
	if !validator.Validate(h.publicURL(r), params, r.Header.Get(twilioSignatureHeader)) {
		h.writeError(w, r, errBadSignature)
		return
	}

	status, reason, ok := twilioStatus(params["MessageStatus"], params["ErrorCode"])
	if !ok {
		writeData(w, http.StatusOK, callbackAck{Result: ackIgnored})
		return
	}
	h.recordProviderEvent(w, r, "twilio", alerting.DeliveryEvent{
		ProviderMessageID: params["MessageSid"],
		Status:            status,
		Reason:            reason,
		OccurredAt:        h.clock(),
	})
}

// twilioStatus maps a Twilio MessageStatus to an attempt status. Interim
// statuses (queued, sending, sent) are not tracked.
func twilioStatus(status, errorCode string) (alerting.AttemptStatus, string, bool) {
	switch status {
	case "delivered":
		return alerting.AttemptDelivered, "", true
	case "read":
		return alerting.AttemptOpened, "", true
	case "failed", "undelivered":
		reason := "twilio: " + status
		if errorCode != "" {
			reason += " (error " + errorCode + ")"
		}
		return alerting.AttemptFailed, reason, true
	}
	return "", "", false
}

func (h *Handler) publicURL(r *http.Request) string {
	base := strings.TrimRight(h.callbacks.PublicBaseURL, "/")
	if base == "" {
		base = "https://" + r.Host
	}
	return base + r.URL.RequestURI()
}

type postmarkEvent struct {
	RecordType  string    `json:"RecordType"`
	MessageID   string    `json:"MessageID"`
	DeliveredAt time.Time `json:"DeliveredAt"`
	ReceivedAt  time.Time `json:"ReceivedAt"`
	BouncedAt   time.Time `json:"BouncedAt"`
	Type        string    `json:"Type"`
	Description string    `json:"Description"`
}

func (e postmarkEvent) deliveryEvent() (alerting.DeliveryEvent, bool) {
	ev := alerting.DeliveryEvent{ProviderMessageID: e.MessageID}
	switch e.RecordType {
	case "Delivery":
		ev.Status, ev.OccurredAt = alerting.AttemptDelivered, e.DeliveredAt
	case "Open":
		ev.Status, ev.OccurredAt = alerting.AttemptOpened, e.ReceivedAt
	case "Click":
		ev.Status, ev.OccurredAt = alerting.AttemptClicked, e.ReceivedAt
	case "Bounce":
		ev.Status, ev.OccurredAt = alerting.AttemptFailed, e.BouncedAt
		ev.Reason = strings.TrimSpace("postmark bounce " + e.Type + ": " + e.Description)
	default:
		return ev, false
	}
	return ev, true
}

func (h *Handler) postmarkCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbacks.PostmarkUsername == "" {
		h.writeError(w, r, errNotConfigured)
		return
	}
	user, pass, ok := r.BasicAuth()
	if !ok ||
		subtle.ConstantTimeCompare([]byte(user), []byte(h.callbacks.PostmarkUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(pass), []byte(h.callbacks.PostmarkPassword)) != 1 {
		h.writeError(w, r, errUnauthorized)
		return
	}

	var payload postmarkEvent
	if err := decodeJSON(w, r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	ev, ok := payload.deliveryEvent()
	if !ok {
		writeData(w, http.StatusOK, callbackAck{Result: ackIgnored})
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = h.clock()
	}
	h.recordProviderEvent(w, r, "postmark", ev)
}

// recordProviderEvent acknowledges events for unknown messages and stale
// transitions so providers do not retry them; anything else that fails is
// answered with an error status.
func (h *Handler) recordProviderEvent(w http.ResponseWriter, r *http.Request, provider string, ev alerting.DeliveryEvent) {
	attempt, err := h.svc.RecordDeliveryEvent(r.Context(), ev)
	switch {
	case err == nil:
		writeData(w, http.StatusOK, callbackAck{Result: ackRecorded, AttemptID: attempt.ID})
	case errors.Is(err, alerting.ErrAttemptNotFound), errors.Is(err, alerting.ErrInvalidTransition):
		h.logger.WarnContext(r.Context(), "provider callback ignored",
			logger.Provider(provider),
			logger.MessageID(ev.ProviderMessageID),
			logger.Status(ev.Status),
			logger.Error(err),
		)
		writeData(w, http.StatusOK, callbackAck{Result: ackIgnored})
	default:
		h.writeError(w, r, err)
	}
}

func (h *Handler) genericCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbacks.Secret == "" {
		h.writeError(w, r, errNotConfigured)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, errors.Join(errBadBody, err))
		return
	}
	if err := webhook.VerifyRequest(h.callbacks.Secret, r.Header, body, h.maxAge); err != nil {
		h.writeError(w, r, errors.Join(errBadSignature, err))
		return
	}

	var ev alerting.DeliveryEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.writeError(w, r, errors.Join(errBadBody, err))
		return
	}
	// The path names the channel; the attempt must belong to it.
	ev.Channel = alerting.ChannelType(chi.URLParam(r, "channel"))

	attempt, err := h.svc.RecordDeliveryEvent(r.Context(), ev)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.DebugContext(r.Context(), "callback recorded",
		logger.Channel(ev.Channel),
		logger.AttemptID(attempt.ID),
		logger.Status(attempt.Status),
	)
	writeData(w, http.StatusOK, attempt)
}
