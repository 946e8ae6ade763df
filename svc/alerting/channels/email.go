package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/xpertseller/alertkit/pkg/email"
	"github.com/xpertseller/alertkit/pkg/email/templates"
	"github.com/xpertseller/alertkit/pkg/validator"
	"github.com/xpertseller/alertkit/svc/alerting"
)

const defaultEmailSubject = "New alert"

// Email renders alerts into the HTML layout and sends them through an
// email.EmailSender.
type Email struct {
	sender email.EmailSender
	footer string
	tag    string
}

type EmailOption func(*Email)

// WithEmailFooter sets the small print under every alert.
func WithEmailFooter(footer string) EmailOption {
	return func(e *Email) { e.footer = footer }
}

// WithEmailTag sets the provider tag used to group alert mail.
func WithEmailTag(tag string) EmailOption {
	return func(e *Email) { e.tag = tag }
}

func NewEmail(sender email.EmailSender, opts ...EmailOption) *Email {
	e := &Email{sender: sender, tag: "alert"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Email) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	if validator.Apply(validator.ValidEmail("address", req.Address)) != nil {
		return alerting.SendResponse{}, fmt.Errorf("%w: %q is not an email address", ErrInvalidAddress, req.Address)
	}
	if strings.TrimSpace(req.Content.Body) == "" {
		return alerting.SendResponse{}, ErrEmptyContent
	}
	subject := req.Content.Subject
	if strings.TrimSpace(subject) == "" {
		subject = defaultEmailSubject
	}

	html, err := templates.Render(ctx, templates.AlertLayout(templates.AlertEmail{
		Subject:  subject,
		Body:     req.Content.Body,
		Priority: string(req.Urgency),
		Footer:   e.footer,
	}))
	if err != nil {
		return alerting.SendResponse{}, fmt.Errorf("render email: %w", err)
	}

	id, err := e.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   req.Address,
		Subject:  subject,
		BodyHTML: html,
		BodyText: req.Content.Body,
		Tag:      e.tag,
	})
	if err != nil {
		return alerting.SendResponse{}, err
	}
	return alerting.SendResponse{ProviderMessageID: id}, nil
}
