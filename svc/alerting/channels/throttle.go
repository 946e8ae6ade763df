package channels

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/xpertseller/alertkit/svc/alerting"
)

// Throttle caps calls to a provider account across all recipients. The
// dispatcher's per-recipient limits sit on top of it.
type Throttle struct {
	next    alerting.Transport
	limiter *rate.Limiter
}

// NewThrottle allows rps sends per second with the given burst. A
// non-positive rps disables throttling.
func NewThrottle(next alerting.Transport, rps float64, burst int) alerting.Transport {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Send waits for a token, bounded by ctx, then forwards the request.
func (t *Throttle) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return alerting.SendResponse{}, err
	}
	return t.next.Send(ctx, req)
}
