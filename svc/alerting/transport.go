package alerting

import (
	"context"
	"fmt"
)

// SendRequest is what a transport needs to deliver one message.
type SendRequest struct {
	AlertID   string
	AttemptID string
	Recipient Recipient
	// Address is the channel-specific destination: email, phone, chat id,
	// webhook URL or, for the dashboard, the recipient id.
	Address string
	Content Content
	Urgency Urgency
}

// SendResponse carries the provider's id for later status callbacks.
type SendResponse struct {
	ProviderMessageID string
}

// Transport delivers content over one channel. Implementations return an
// error for any provider failure; the dispatcher records it as failed.
type Transport interface {
	Send(ctx context.Context, req SendRequest) (SendResponse, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req SendRequest) (SendResponse, error)

func (f TransportFunc) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	return f(ctx, req)
}

// Transports maps channels to their transport.
type Transports map[ChannelType]Transport

// ProviderError wraps a transport failure with its channel.
type ProviderError struct {
	Channel ChannelType
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProvider, e.Channel, e.Err)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func (e *ProviderError) Unwrap() error { return e.Err }
