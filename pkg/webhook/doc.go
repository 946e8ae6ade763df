// Package webhook delivers JSON payloads to HTTP endpoints and verifies
// signed inbound webhooks.
//
// Each Send is a single attempt. A shared CircuitBreaker per endpoint stops
// traffic to an endpoint that keeps failing; 4xx responses are classified as
// ErrPermanentFailure and do not count against the breaker.
//
// Signed requests carry X-Webhook-Signature, X-Webhook-Timestamp and
// X-Webhook-ID. The signature is hex(HMAC-SHA256(secret, "<ts>.<body>")).
// VerifyRequest checks the same scheme on inbound requests.
package webhook
