package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xpertseller/alertkit/pkg/async"
	"github.com/xpertseller/alertkit/pkg/logger"
)

// maxFailureReason bounds the provider message stored on failed attempts.
const maxFailureReason = 500

// DispatchRequest is one alert ready for delivery.
type DispatchRequest struct {
	Alert     Alert
	Template  Template
	Recipient Recipient
}

// Skip records a channel that produced no attempt.
type Skip struct {
	Channel ChannelType `json:"channel"`
	Reason  SkipReason  `json:"reason"`
	Detail  string      `json:"detail,omitempty"`
}

// DispatchResult summarizes one dispatch. Attempts are in channel order.
type DispatchResult struct {
	Attempts  []DeliveryAttempt `json:"attempts"`
	Skipped   []Skip            `json:"skipped,omitempty"`
	Succeeded bool              `json:"succeeded"`
	Expired   bool              `json:"expired,omitempty"`
	Cancelled bool              `json:"cancelled,omitempty"`
}

func (r *DispatchResult) add(o channelOutcome) {
	switch {
	case o.attempt != nil:
		r.Attempts = append(r.Attempts, *o.attempt)
		if o.attempt.Status == AttemptSent {
			r.Succeeded = true
		}
	case o.skip != nil:
		r.Skipped = append(r.Skipped, *o.skip)
		switch o.skip.Reason {
		case SkipExpired:
			r.Expired = true
		case SkipCancelled:
			r.Cancelled = true
		}
	}
}

type channelOutcome struct {
	attempt *DeliveryAttempt
	skip    *Skip
}

// Dispatcher runs the per-channel pipeline: cancellation, expiry,
// availability, rate limit, render, send, record. Only sent or failed
// attempts are written.
type Dispatcher struct {
	registry   *Registry
	limiter    *RateLimiter
	engine     *Engine
	transports Transports
	ledger     Ledger
	observer   Observer
	clock      func() time.Time
	newID      func() string
	logger     *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherClock(clock func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver registers a best-effort observer for recorded attempts.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(registry *Registry, limiter *RateLimiter, engine *Engine, transports Transports, ledger Ledger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		limiter:    limiter,
		engine:     engine,
		transports: transports,
		ledger:     ledger,
		clock:      time.Now,
		newID:      uuid.NewString,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers req.Alert over its channels. Broadcast mode attempts all
// channels concurrently; otherwise channels are tried in order until one is
// sent, or all of them when SendToAll is set. The returned error reports
// ledger failures only; provider failures are part of the result.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	var (
		result DispatchResult
		errs   []error
	)

	if req.Alert.BroadcastMode {
		outcomes := async.Map(ctx, indexed(req.Alert.Channels), len(req.Alert.Channels),
			func(ctx context.Context, p planned) (channelOutcome, error) {
				return d.attempt(ctx, req, p.channel, p.seq)
			})
		for i, o := range outcomes {
			// Map stops launching work once ctx is done; those channels were
			// never reached.
			if o.Err != nil && o.Value == (channelOutcome{}) && ctx.Err() != nil && errors.Is(o.Err, ctx.Err()) {
				result.add(channelOutcome{skip: &Skip{Channel: req.Alert.Channels[i], Reason: SkipCancelled, Detail: o.Err.Error()}})
				continue
			}
			if o.Err != nil {
				errs = append(errs, o.Err)
			}
			result.add(o.Value)
		}
		return result, errors.Join(errs...)
	}

	for i, ch := range req.Alert.Channels {
		o, err := d.attempt(ctx, req, ch, i)
		if err != nil {
			errs = append(errs, err)
		}
		result.add(o)

		if o.skip != nil && (o.skip.Reason == SkipExpired || o.skip.Reason == SkipCancelled) {
			for _, rest := range req.Alert.Channels[i+1:] {
				result.add(channelOutcome{skip: &Skip{Channel: rest, Reason: o.skip.Reason}})
			}
			break
		}
		if o.attempt != nil && o.attempt.Status == AttemptSent && !req.Alert.SendToAll {
			break
		}
	}
	return result, errors.Join(errs...)
}

func (d *Dispatcher) skip(ctx context.Context, req DispatchRequest, ch ChannelType, reason SkipReason, cause error) channelOutcome {
	s := &Skip{Channel: ch, Reason: reason}
	if cause != nil {
		s.Detail = cause.Error()
	}
	d.logger.LogAttrs(ctx, slog.LevelWarn, "channel skipped",
		logger.AlertID(req.Alert.ID),
		logger.RecipientID(req.Alert.RecipientID),
		logger.Channel(ch),
		slog.String("reason", string(reason)),
		logger.Error(cause),
	)
	return channelOutcome{skip: s}
}

// planned is a channel with its position in the alert's plan.
type planned struct {
	channel ChannelType
	seq     int
}

func indexed(channels []ChannelType) []planned {
	out := make([]planned, len(channels))
	for i, ch := range channels {
		out[i] = planned{channel: ch, seq: i}
	}
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, req DispatchRequest, chType ChannelType, seq int) (channelOutcome, error) {
	alert := req.Alert
	now := d.clock()

	if err := ctx.Err(); err != nil {
		return d.skip(ctx, req, chType, SkipCancelled, err), nil
	}
	if alert.ExpiredAt(now) {
		return d.skip(ctx, req, chType, SkipExpired, ErrAlertExpired), nil
	}

	ch, err := d.registry.Get(chType)
	if err != nil {
		return d.skip(ctx, req, chType, SkipUnavailable, err), nil
	}
	if !ch.Enabled {
		return d.skip(ctx, req, chType, SkipUnavailable, fmt.Errorf("%w: disabled", ErrChannelUnavailable)), nil
	}
	transport, ok := d.transports[chType]
	if !ok || transport == nil {
		return d.skip(ctx, req, chType, SkipUnavailable, ErrNoTransport), nil
	}
	address := req.Recipient.Contact(chType)
	if ch.AlwaysAvailable {
		address = req.Recipient.ID
	}
	if address == "" {
		return d.skip(ctx, req, chType, SkipUnavailable, fmt.Errorf("%w: no contact address", ErrChannelUnavailable)), nil
	}

	if err := d.limiter.CheckAndReserve(ctx, alert.RecipientID, chType, now); err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			return d.skip(ctx, req, chType, SkipRateLimited, err), nil
		}
		return d.skip(ctx, req, chType, SkipUnavailable, err), nil
	}

	attempt := DeliveryAttempt{
		ID:          d.newID(),
		AlertID:     alert.ID,
		RecipientID: alert.RecipientID,
		Channel:     chType,
		Sequence:    seq,
		Status:      AttemptPending,
		CreatedAt:   now,
	}

	resp, sendErr := d.send(ctx, req, ch, transport, address, attempt.ID, now)
	done := d.clock()
	if sendErr != nil {
		attempt, _, _ = advanceAttempt(ctx, attempt, AttemptFailed, done, truncateReason(sendErr.Error()))
		d.logger.LogAttrs(ctx, slog.LevelWarn, "delivery failed",
			logger.AlertID(alert.ID),
			logger.AttemptID(attempt.ID),
			logger.Channel(chType),
			logger.Error(sendErr),
		)
	} else {
		attempt.ProviderMessageID = resp.ProviderMessageID
		attempt, _, _ = advanceAttempt(ctx, attempt, AttemptSent, done, "")
		d.logger.LogAttrs(ctx, slog.LevelDebug, "delivery sent",
			logger.AlertID(alert.ID),
			logger.AttemptID(attempt.ID),
			logger.Channel(chType),
			logger.MessageID(resp.ProviderMessageID),
		)
	}

	recordCtx := context.WithoutCancel(ctx)
	if err := d.ledger.RecordAttempt(recordCtx, attempt); err != nil {
		return channelOutcome{attempt: &attempt}, fmt.Errorf("record attempt %s: %w", attempt.ID, err)
	}
	d.notify(recordCtx, Event{Type: EventAttemptRecorded, OccurredAt: done, Attempt: &attempt})
	return channelOutcome{attempt: &attempt}, nil
}

// send runs detached from caller cancellation: the rate limit budget is
// already spent, so the attempt completes and is bounded by the channel
// timeout only.
func (d *Dispatcher) send(ctx context.Context, req DispatchRequest, ch Channel, t Transport, address, attemptID string, now time.Time) (SendResponse, error) {
	ctx = context.WithoutCancel(ctx)
	content, err := d.engine.Render(ctx, RenderRequest{
		Template:  req.Template,
		Variables: req.Alert.Variables,
		Recipient: req.Recipient,
		Channel:   ch,
		Urgency:   req.Alert.Urgency,
		Now:       now,
	})
	if err != nil {
		return SendResponse{}, fmt.Errorf("render: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, ch.Timeout())
	defer cancel()

	resp, err := t.Send(sendCtx, SendRequest{
		AlertID:   req.Alert.ID,
		AttemptID: attemptID,
		Recipient: req.Recipient,
		Address:   address,
		Content:   content,
		Urgency:   req.Alert.Urgency,
	})
	if err != nil {
		return SendResponse{}, &ProviderError{Channel: ch.Type, Err: err}
	}
	return resp, nil
}

func (d *Dispatcher) notify(ctx context.Context, e Event) {
	if d.observer == nil {
		return
	}
	if err := d.observer.Observe(ctx, e); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "observer failed",
			logger.Event(string(e.Type)),
			logger.Error(err),
		)
	}
}

func truncateReason(s string) string {
	r := []rune(s)
	if len(r) <= maxFailureReason {
		return s
	}
	return string(r[:maxFailureReason])
}
