package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/validator"
	"github.com/xpertseller/alertkit/svc/alerting"
)

const whatsappPrefix = "whatsapp:"

// TwilioConfig holds credentials and sender numbers for SMS and WhatsApp.
type TwilioConfig struct {
	AccountSID        string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken         string `env:"TWILIO_AUTH_TOKEN"`
	SMSFrom           string `env:"TWILIO_SMS_FROM"`
	WhatsAppFrom      string `env:"TWILIO_WHATSAPP_FROM"`
	StatusCallbackURL string `env:"TWILIO_STATUS_CALLBACK_URL"`
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

// MessageCreator is the part of the Twilio REST API the transports use.
// (*twilio.RestClient).Api satisfies it.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// NewTwilioClient builds a REST client from cfg.
func NewTwilioClient(cfg TwilioConfig) (*twilio.RestClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: twilio credentials are missing", ErrNotConfigured)
	}
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	}), nil
}

// Twilio sends SMS or WhatsApp messages. WhatsApp addresses and the sender
// number get the "whatsapp:" prefix.
type Twilio struct {
	api      MessageCreator
	from     string
	callback string
	whatsapp bool
	logger   *slog.Logger
}

type TwilioOption func(*Twilio)

// WithTwilioLogger sets the logger that reports messages Twilio accepted
// after Send had already given up on them.
func WithTwilioLogger(l *slog.Logger) TwilioOption {
	return func(t *Twilio) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewSMS sends plain SMS from the given number.
func NewSMS(api MessageCreator, from, statusCallback string, opts ...TwilioOption) *Twilio {
	return newTwilio(&Twilio{api: api, from: from, callback: statusCallback}, opts)
}

// NewWhatsApp sends WhatsApp messages from the given number.
func NewWhatsApp(api MessageCreator, from, statusCallback string, opts ...TwilioOption) *Twilio {
	return newTwilio(&Twilio{
		api:      api,
		from:     whatsappPrefix + strings.TrimPrefix(from, whatsappPrefix),
		callback: statusCallback,
		whatsapp: true,
	}, opts)
}

func newTwilio(t *Twilio, opts []TwilioOption) *Twilio {
	t.logger = slog.Default()
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Twilio) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	to := strings.TrimPrefix(req.Address, whatsappPrefix)
	if validator.Apply(validator.ValidPhone("address", to)) != nil {
		return alerting.SendResponse{}, fmt.Errorf("%w: %q is not an E.164 number", ErrInvalidAddress, req.Address)
	}
	if strings.TrimSpace(req.Content.Body) == "" {
		return alerting.SendResponse{}, ErrEmptyContent
	}
	if t.whatsapp {
		to = whatsappPrefix + to
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(req.Content.Body)
	if t.callback != "" {
		params.SetStatusCallback(t.callback)
	}

	// The Twilio client is not context aware; give up waiting when ctx ends.
	// The request keeps running and its outcome is logged once it lands.
	done := make(chan twilioResult, 1)
	go func() {
		msg, err := t.api.CreateMessage(params)
		done <- twilioResult{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		go t.reportLate(req, done)
		return alerting.SendResponse{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return alerting.SendResponse{}, r.err
		}
		return alerting.SendResponse{ProviderMessageID: messageSID(r.msg)}, nil
	}
}

// reportLate waits for an abandoned CreateMessage call. A message accepted
// at this point reached Twilio while its attempt is already recorded as
// failed, so the SID is logged for reconciliation.
func (t *Twilio) reportLate(req alerting.SendRequest, done <-chan twilioResult) {
	r := <-done
	attrs := []any{
		logger.AlertID(req.AlertID),
		logger.AttemptID(req.AttemptID),
		logger.Provider("twilio"),
	}
	if r.err != nil {
		t.logger.Info("twilio request failed after send timed out", append(attrs, logger.Error(r.err))...)
		return
	}
	t.logger.Warn("twilio accepted message after send timed out",
		append(attrs, logger.MessageID(messageSID(r.msg)))...)
}

type twilioResult struct {
	msg *openapi.ApiV2010Message
	err error
}

func messageSID(msg *openapi.ApiV2010Message) string {
	if msg == nil || msg.Sid == nil {
		return ""
	}
	return *msg.Sid
}
