package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xpertseller/alertkit/pkg/webhook"
)

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cb := webhook.NewCircuitBreaker(2, 2, time.Minute).WithClock(func() time.Time { return now })

	assert.Equal(t, webhook.CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, webhook.CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, webhook.CircuitHalfOpen, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, webhook.CircuitOpen, cb.State())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, webhook.CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, webhook.CircuitClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())

	cb.RecordFailure()
	cb.Reset()
	cb.RecordFailure()
	assert.Equal(t, webhook.CircuitClosed, cb.State())
}
