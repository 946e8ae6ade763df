package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xpertseller/alertkit/pkg/validator"
	"github.com/xpertseller/alertkit/pkg/webhook"
	"github.com/xpertseller/alertkit/svc/alerting"
)

// WebhookPayload is the JSON body posted to webhook channels. Text is the
// field Slack incoming webhooks render.
type WebhookPayload struct {
	Text      string           `json:"text"`
	Subject   string           `json:"subject,omitempty"`
	Body      string           `json:"body"`
	AlertID   string           `json:"alert_id"`
	AttemptID string           `json:"attempt_id"`
	Urgency   alerting.Urgency `json:"urgency"`
	Degraded  bool             `json:"degraded,omitempty"`
}

// Webhook posts alerts as JSON to the recipient's URL. With a secret the
// request is HMAC signed; a circuit breaker stops hammering a dead endpoint.
type Webhook struct {
	sender  *webhook.Sender
	secret  string
	breaker *webhook.CircuitBreaker
	timeout time.Duration
}

type WebhookOption func(*Webhook)

func WithWebhookSecret(secret string) WebhookOption {
	return func(w *Webhook) { w.secret = secret }
}

func WithWebhookBreaker(cb *webhook.CircuitBreaker) WebhookOption {
	return func(w *Webhook) { w.breaker = cb }
}

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func NewWebhook(sender *webhook.Sender, opts ...WebhookOption) *Webhook {
	if sender == nil {
		sender = webhook.NewSender()
	}
	w := &Webhook{
		sender:  sender,
		breaker: webhook.NewCircuitBreaker(5, 2, time.Minute),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	if validator.Apply(validator.ValidURL("address", req.Address)) != nil {
		return alerting.SendResponse{}, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidAddress, req.Address)
	}
	text := req.Content.Body
	if req.Content.Subject != "" {
		text = "*" + req.Content.Subject + "*\n" + text
	}
	if strings.TrimSpace(text) == "" {
		return alerting.SendResponse{}, ErrEmptyContent
	}

	opts := []webhook.SendOption{webhook.WithTimeout(w.timeout)}
	if w.breaker != nil {
		opts = append(opts, webhook.WithCircuitBreaker(w.breaker))
	}
	if w.secret != "" {
		opts = append(opts, webhook.WithSignature(w.secret))
	}

	res, err := w.sender.Send(ctx, req.Address, WebhookPayload{
		Text:      text,
		Subject:   req.Content.Subject,
		Body:      req.Content.Body,
		AlertID:   req.AlertID,
		AttemptID: req.AttemptID,
		Urgency:   req.Urgency,
		Degraded:  req.Content.Degraded,
	}, opts...)
	if err != nil {
		return alerting.SendResponse{}, err
	}

	id := res.ID
	if id == "" {
		id = req.AttemptID
	}
	return alerting.SendResponse{ProviderMessageID: id}, nil
}
