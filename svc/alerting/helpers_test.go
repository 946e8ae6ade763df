package alerting_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/ratelimit"
	"github.com/xpertseller/alertkit/svc/alerting"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by every component under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingTransport captures requests and answers with err when set.
type recordingTransport struct {
	mu       sync.Mutex
	channel  alerting.ChannelType
	err      error
	delay    time.Duration
	onSend   func()
	requests []alerting.SendRequest
}

func (r *recordingTransport) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return alerting.SendResponse{}, ctx.Err()
		}
	}
	r.mu.Lock()
	r.requests = append(r.requests, req)
	n := len(r.requests)
	hook := r.onSend
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	if r.err != nil {
		return alerting.SendResponse{}, r.err
	}
	return alerting.SendResponse{ProviderMessageID: fmt.Sprintf("%s-%d", r.channel, n)}, nil
}

func (r *recordingTransport) Requests() []alerting.SendRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alerting.SendRequest(nil), r.requests...)
}

func (r *recordingTransport) Calls() int {
	return len(r.Requests())
}

type fixture struct {
	clock      *fakeClock
	registry   *alerting.Registry
	ledger     *alerting.MemoryLedger
	templates  *alerting.MemoryTemplates
	directory  *alerting.MemoryDirectory
	transports map[alerting.ChannelType]*recordingTransport
	store      *ratelimit.MemoryStore
	service    *alerting.Service
}

var errProviderDown = errors.New("provider: 503 service unavailable")

func newFixture(t *testing.T, channels []alerting.Channel, opts ...alerting.ServiceOption) *fixture {
	t.Helper()
	if channels == nil {
		channels = alerting.DefaultChannels()
	}

	clock := newClock(t0)
	f := &fixture{
		clock:      clock,
		registry:   alerting.MustNewRegistry(channels...),
		ledger:     alerting.NewMemoryLedger(),
		templates:  alerting.NewMemoryTemplates(listingTemplate()),
		directory:  alerting.NewMemoryDirectory(sellerRecipient()),
		transports: make(map[alerting.ChannelType]*recordingTransport),
		store:      ratelimit.NewMemoryStore(ratelimit.WithStoreClock(clock.Now)),
	}
	t.Cleanup(func() { _ = f.store.Close() })

	transports := alerting.Transports{}
	for _, ch := range channels {
		rt := &recordingTransport{channel: ch.Type}
		f.transports[ch.Type] = rt
		transports[ch.Type] = rt
	}

	opts = append([]alerting.ServiceOption{
		alerting.WithClock(f.clock.Now),
		alerting.WithLogger(logger.Discard()),
	}, opts...)

	svc, err := alerting.NewService(alerting.Dependencies{
		Registry:   f.registry,
		Ledger:     f.ledger,
		Templates:  f.templates,
		Directory:  f.directory,
		Transports: transports,
		RateStore:  f.store,
	}, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.service = svc
	return f
}

func listingTemplate() alerting.Template {
	return alerting.Template{
		ID:                "listing-suppressed",
		Subject:           "Listing {{asin}} suppressed",
		Body:              "Your listing {{asin}} was suppressed. Review it now.",
		RequiredVariables: []string{"asin"},
		Urgency:           alerting.UrgencyNormal,
	}
}

func sellerRecipient() alerting.Recipient {
	return alerting.Recipient{
		ID:          "seller-1",
		DisplayName: "ada lovelace",
		Contacts: map[alerting.ChannelType]string{
			alerting.ChannelEmail:    "ada@example.com",
			alerting.ChannelWhatsApp: "+15550001111",
			alerting.ChannelSMS:      "+15550001111",
			alerting.ChannelTelegram: "12345",
			alerting.ChannelSlack:    "https://hooks.example.com/T1",
		},
		PreferredChannels: []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelWhatsApp},
	}
}

func attemptsFor(t *testing.T, f *fixture, alertID string) []alerting.DeliveryAttempt {
	t.Helper()
	attempts, err := f.ledger.ListAttempts(context.Background(), alertID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	return attempts
}
