package alerting_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/svc/alerting"
)

type countingTemplates struct {
	next  alerting.TemplateStore
	calls atomic.Int64
}

func (c *countingTemplates) GetTemplate(ctx context.Context, id string) (alerting.Template, error) {
	c.calls.Add(1)
	return c.next.GetTemplate(ctx, id)
}

func TestCachedTemplates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := alerting.NewMemoryTemplates(listingTemplate())
	src := &countingTemplates{next: mem}
	cached := alerting.NewCachedTemplates(src, 10, time.Hour)

	for range 3 {
		tmpl, err := cached.GetTemplate(ctx, "listing-suppressed")
		require.NoError(t, err)
		assert.Equal(t, []string{"asin"}, tmpl.RequiredVariables)
	}
	assert.Equal(t, int64(1), src.calls.Load())

	_, err := cached.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, alerting.ErrTemplateNotFound)
	_, err = cached.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, alerting.ErrTemplateNotFound)
	assert.Equal(t, int64(3), src.calls.Load(), "misses are not cached")

	updated := listingTemplate()
	updated.Subject = "changed"
	mem.Put(updated)
	cached.Invalidate("listing-suppressed")

	tmpl, err := cached.GetTemplate(ctx, "listing-suppressed")
	require.NoError(t, err)
	assert.Equal(t, "changed", tmpl.Subject)
}

func TestMemoryDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := alerting.NewMemoryDirectory(sellerRecipient())

	r, err := d.GetRecipientContext(ctx, "seller-1")
	require.NoError(t, err)
	r.Contacts[alerting.ChannelEmail] = "mutated@example.com"

	again, err := d.GetRecipientContext(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", again.Contact(alerting.ChannelEmail))

	_, err = d.GetRecipientContext(ctx, "nobody")
	assert.ErrorIs(t, err, alerting.ErrRecipientNotFound)
}
