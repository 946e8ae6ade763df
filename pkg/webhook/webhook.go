package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender posts JSON payloads to webhook endpoints, one attempt per call.
// Zero value is not usable; use NewSender.
type Sender struct {
	client    *http.Client
	userAgent string
}

// NewSender creates a webhook sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "alertkit-webhook/1.0",
	}
}

// NewSenderWithClient creates a webhook sender with a custom HTTP client.
func NewSenderWithClient(client *http.Client) *Sender {
	s := NewSender()
	if client != nil {
		s.client = client
	}
	return s
}

// Send marshals data to JSON and POSTs it to webhookURL.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) (DeliveryResult, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return s.SendRaw(ctx, webhookURL, payload, opts...)
}

// SendRaw POSTs an already encoded JSON payload.
func (s *Sender) SendRaw(ctx context.Context, webhookURL string, payload []byte, opts ...SendOption) (DeliveryResult, error) {
	if err := validateInputs(webhookURL, payload); err != nil {
		return DeliveryResult{}, err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.circuitBreaker != nil && !options.circuitBreaker.Allow() {
		return DeliveryResult{}, ErrCircuitOpen
	}

	result, err := s.deliver(ctx, webhookURL, payload, options)

	if options.circuitBreaker != nil {
		// 4xx means the endpoint is up and rejecting us; don't trip the breaker.
		if err == nil || isPermanent(result.StatusCode) {
			options.circuitBreaker.RecordSuccess()
		} else {
			options.circuitBreaker.RecordFailure()
		}
	}
	if options.onDelivery != nil {
		options.onDelivery(result)
	}

	if err != nil && isPermanent(result.StatusCode) {
		return result, fmt.Errorf("%w: %w", ErrPermanentFailure, err)
	}
	return result, err
}

func validateInputs(webhookURL string, payload []byte) error {
	if webhookURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

func (s *Sender) deliver(ctx context.Context, webhookURL string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	var result DeliveryResult

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.signatureSecret != "" {
		sig, err := SignPayload(options.signatureSecret, payload)
		if err != nil {
			return result, err
		}
		result.ID = sig.ID
		sig.Apply(req.Header)
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	result.Body = string(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		if len(body) > 0 {
			bodyStr := strings.ReplaceAll(string(body), "\n", " ")
			if len(bodyStr) > 200 {
				bodyStr = bodyStr[:200] + "..."
			}
			msg += ": " + bodyStr
		}
		return result, fmt.Errorf("%w: %s", ErrDeliveryFailed, msg)
	}

	result.Success = true
	return result, nil
}

// isPermanent reports 4xx codes that will not succeed on a later attempt.
func isPermanent(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
