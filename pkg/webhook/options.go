package webhook

import "time"

// DeliveryResult describes a single delivery attempt.
type DeliveryResult struct {
	// ID is the X-Webhook-ID sent with signed requests.
	ID         string
	Success    bool
	StatusCode int
	Body       string
	Duration   time.Duration
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout         time.Duration
	headers         map[string]string
	signatureSecret string
	circuitBreaker  *CircuitBreaker
	onDelivery      DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout: 10 * time.Second,
		headers: make(map[string]string),
	}
}

// SendOption configures a single send.
type SendOption func(*sendOptions)

// WithTimeout sets the request timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithSignature enables HMAC-SHA256 request signing with the given secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithCircuitBreaker guards the endpoint. Reuse one breaker per endpoint.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuitBreaker = cb
	}
}

func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
