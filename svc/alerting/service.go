package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/notifications"
	"github.com/xpertseller/alertkit/pkg/ratelimit"
	"github.com/xpertseller/alertkit/pkg/validator"
)

const (
	defaultReleaseBatch = 100
	maxIDLength         = 128
	maxEventRetries     = 3
)

// Dependencies are the collaborators a Service cannot run without.
type Dependencies struct {
	Registry   *Registry
	Ledger     Ledger
	Templates  TemplateStore
	Directory  RecipientDirectory
	Transports Transports
	RateStore  ratelimit.Store
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Registry == nil {
		errs = append(errs, errors.New("registry is required"))
	}
	if d.Ledger == nil {
		errs = append(errs, errors.New("ledger is required"))
	}
	if d.Templates == nil {
		errs = append(errs, errors.New("template store is required"))
	}
	if d.Directory == nil {
		errs = append(errs, errors.New("recipient directory is required"))
	}
	if d.RateStore == nil {
		errs = append(errs, errors.New("rate limit store is required"))
	}
	return errors.Join(errs...)
}

// SendAlertRequest asks for one alert to be delivered. Channels, when set,
// bypass channel selection. Urgency defaults to the template's urgency.
type SendAlertRequest struct {
	RecipientID   string         `json:"recipient_id"`
	TemplateID    string         `json:"template_id"`
	Variables     map[string]any `json:"variables"`
	Urgency       Urgency        `json:"urgency,omitempty"`
	Channels      []ChannelType  `json:"channels,omitempty"`
	BroadcastMode bool           `json:"broadcast_mode"`
	SendToAll     bool           `json:"send_to_all"`
	ScheduleAt    *time.Time     `json:"schedule_at,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
}

// SendResult is the outcome of SendAlert. Succeeded is true when any attempt
// reached sent. Scheduled alerts carry no attempts yet.
type SendResult struct {
	AlertID   string        `json:"alert_id"`
	Status    AlertStatus   `json:"status"`
	Scheduled bool          `json:"scheduled,omitempty"`
	Channels  []ChannelType `json:"channels"`
	DispatchResult
}

// AlertView is an alert with every attempt recorded for it.
type AlertView struct {
	Alert    Alert             `json:"alert"`
	Attempts []DeliveryAttempt `json:"attempts"`
}

// DeliveryEvent is a provider or in-app status report for one attempt,
// addressed by attempt ID or provider message ID. A non-empty Channel must
// match the attempt's channel.
type DeliveryEvent struct {
	AttemptID         string        `json:"attempt_id,omitempty"`
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	Channel           ChannelType   `json:"channel,omitempty"`
	Status            AttemptStatus `json:"status"`
	Reason            string        `json:"reason,omitempty"`
	OccurredAt        time.Time     `json:"occurred_at"`
}

// Service is the entry point of the alert delivery subsystem.
type Service struct {
	registry   *Registry
	ledger     Ledger
	templates  TemplateStore
	directory  RecipientDirectory
	selector   *Selector
	engine     *Engine
	dispatcher *Dispatcher
	tracker    *Tracker
	observers  Observers

	recommendations RecommendationSource
	releaseBatch    int
	clock           func() time.Time
	newID           func() string
	logger          *slog.Logger
}

type ServiceOption func(*Service)

func WithRecommendationSource(src RecommendationSource) ServiceOption {
	return func(s *Service) { s.recommendations = src }
}

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObservers adds observers for attempt and alert events.
func WithObservers(obs ...Observer) ServiceOption {
	return func(s *Service) { s.observers = append(s.observers, obs...) }
}

// WithReleaseBatch bounds how many due alerts one ReleaseDue call claims.
func WithReleaseBatch(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.releaseBatch = n
		}
	}
}

func NewService(deps Dependencies, opts ...ServiceOption) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("alerting: %w", err)
	}

	s := &Service{
		registry:     deps.Registry,
		ledger:       deps.Ledger,
		templates:    deps.Templates,
		directory:    deps.Directory,
		releaseBatch: defaultReleaseBatch,
		clock:        time.Now,
		newID:        uuid.NewString,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	limiter, err := NewRateLimiter(deps.Registry, deps.RateStore, WithRateLimiterLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.engine = NewEngine(
		WithRecommendations(s.recommendations),
		WithEngineClock(s.clock),
		WithEngineLogger(s.logger),
	)
	s.selector = NewSelector(deps.Registry)
	s.tracker = NewTracker(deps.Ledger, WithTrackerClock(s.clock))

	dopts := []DispatcherOption{WithDispatcherClock(s.clock), WithDispatcherLogger(s.logger)}
	if len(s.observers) > 0 {
		dopts = append(dopts, WithObserver(s.observers))
	}
	s.dispatcher = NewDispatcher(deps.Registry, limiter, s.engine, deps.Transports, deps.Ledger, dopts...)
	return s, nil
}

func validateSendRequest(req SendAlertRequest, now time.Time) error {
	err := validator.Apply(
		validator.Required("recipient_id", req.RecipientID),
		validator.MaxLen("recipient_id", req.RecipientID, maxIDLength),
		validator.Required("template_id", req.TemplateID),
		validator.MaxLen("template_id", req.TemplateID, maxIDLength),
		validator.When(req.Urgency != "",
			validator.OneOf("urgency", req.Urgency, Urgencies),
		),
		validator.When(req.ScheduleAt != nil && req.ExpiresAt != nil,
			validator.After("expires_at", deref(req.ExpiresAt), deref(req.ScheduleAt)),
		),
		validator.When(req.ScheduleAt == nil && req.ExpiresAt != nil,
			validator.After("expires_at", deref(req.ExpiresAt), now),
		),
	)
	if err == nil {
		return nil
	}
	verr := &ValidationError{Cause: err}
	for _, fe := range validator.ExtractValidationErrors(err) {
		verr.Fields = append(verr.Fields, FieldError{Field: fe.Field, Message: fe.Message})
	}
	return verr
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// SendAlert validates the request, records the alert and, unless it is
// scheduled for later, dispatches it. Validation failures return a
// ValidationError and record nothing. Channel skips and provider failures
// are part of the result; the error is reserved for invalid requests and
// ledger failures.
func (s *Service) SendAlert(ctx context.Context, req SendAlertRequest) (*SendResult, error) {
	now := s.clock()
	if err := validateSendRequest(req, now); err != nil {
		return nil, err
	}

	tmpl, rcpt, err := s.resolve(ctx, req.TemplateID, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Validate(tmpl, req.Variables, rcpt); err != nil {
		return nil, err
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = tmpl.Urgency
	}
	if urgency == "" {
		urgency = UrgencyNormal
	}

	var (
		channels []ChannelType
		skipped  []Skip
	)
	if len(req.Channels) > 0 {
		selected, disabled, err := s.selector.Explicit(req.Channels)
		if err != nil {
			return nil, err
		}
		channels = selected
		for _, ch := range disabled {
			skipped = append(skipped, Skip{Channel: ch, Reason: SkipUnavailable, Detail: "channel disabled"})
		}
	} else {
		channels = s.selector.Select(urgency, rcpt.PreferredChannels)
	}

	scheduled := req.ScheduleAt != nil && req.ScheduleAt.After(now)
	alert := Alert{
		ID:            s.newID(),
		RecipientID:   req.RecipientID,
		TemplateID:    req.TemplateID,
		Variables:     maps.Clone(req.Variables),
		Channels:      channels,
		Urgency:       urgency,
		BroadcastMode: req.BroadcastMode,
		SendToAll:     req.SendToAll,
		ScheduledAt:   now,
		ExpiresAt:     req.ExpiresAt,
		Status:        AlertProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if scheduled {
		alert.ScheduledAt = *req.ScheduleAt
		alert.Status = AlertPending
	}

	if err := s.ledger.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	log := s.logger.With(logger.AlertID(alert.ID), logger.RecipientID(alert.RecipientID))
	if scheduled {
		log.LogAttrs(ctx, slog.LevelInfo, "alert scheduled",
			logger.TemplateID(alert.TemplateID),
			slog.Time("scheduled_at", alert.ScheduledAt),
		)
		return &SendResult{
			AlertID:   alert.ID,
			Status:    AlertPending,
			Scheduled: true,
			Channels:  channels,
			DispatchResult: DispatchResult{
				Skipped: skipped,
			},
		}, nil
	}

	result, err := s.deliver(ctx, alert, tmpl, rcpt)
	if result != nil {
		result.Skipped = append(skipped, result.Skipped...)
	}
	return result, err
}

// resolve loads the template and recipient. Missing ones are validation
// failures of the request.
func (s *Service) resolve(ctx context.Context, templateID, recipientID string) (Template, Recipient, error) {
	tmpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return Template{}, Recipient{}, newValidationError(err, "template_id", "unknown template %q", templateID)
		}
		return Template{}, Recipient{}, fmt.Errorf("get template: %w", err)
	}
	rcpt, err := s.directory.GetRecipientContext(ctx, recipientID)
	if err != nil {
		if errors.Is(err, ErrRecipientNotFound) {
			return Template{}, Recipient{}, newValidationError(err, "recipient_id", "unknown recipient %q", recipientID)
		}
		return Template{}, Recipient{}, fmt.Errorf("get recipient: %w", err)
	}
	if rcpt.ID == "" {
		rcpt.ID = recipientID
	}
	return tmpl, rcpt, nil
}

// deliver dispatches a processing alert and marks it completed.
func (s *Service) deliver(ctx context.Context, alert Alert, tmpl Template, rcpt Recipient) (*SendResult, error) {
	start := s.clock()
	dr, dispatchErr := s.dispatcher.Dispatch(ctx, DispatchRequest{
		Alert:     alert,
		Template:  tmpl,
		Recipient: rcpt,
	})

	completeErr := s.complete(ctx, alert)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "alert dispatched",
		logger.AlertID(alert.ID),
		logger.RecipientID(alert.RecipientID),
		slog.Int("attempts", len(dr.Attempts)),
		slog.Int("skipped", len(dr.Skipped)),
		slog.Bool("succeeded", dr.Succeeded),
		logger.Duration(s.clock().Sub(start)),
	)

	return &SendResult{
		AlertID:        alert.ID,
		Status:         AlertCompleted,
		Channels:       alert.Channels,
		DispatchResult: dr,
	}, errors.Join(dispatchErr, completeErr)
}

func (s *Service) complete(ctx context.Context, alert Alert) error {
	ctx = context.WithoutCancel(ctx)
	now := s.clock()
	ok, err := s.ledger.TransitionAlert(ctx, alert.ID, AlertProcessing, AlertCompleted, now)
	if err != nil {
		return fmt.Errorf("complete alert %s: %w", alert.ID, err)
	}
	if !ok {
		return nil
	}
	alert.Status = AlertCompleted
	alert.UpdatedAt = now
	s.notify(ctx, Event{Type: EventAlertCompleted, OccurredAt: now, Alert: &alert})
	return nil
}

// GetAlert returns the alert and its attempts.
func (s *Service) GetAlert(ctx context.Context, id string) (*AlertView, error) {
	alert, err := s.ledger.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	attempts, err := s.ledger.ListAttempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []DeliveryAttempt{}
	}
	return &AlertView{Alert: alert, Attempts: attempts}, nil
}

// GetDeliveryStats reports delivery analytics for a recipient over the last
// windowDays days.
func (s *Service) GetDeliveryStats(ctx context.Context, recipientID string, windowDays int) (DeliveryStats, error) {
	return s.tracker.Stats(ctx, recipientID, windowDays)
}

// RecordDeliveryEvent advances an attempt's status. Repeated events are
// accepted without change; regressions and updates to failed attempts
// return ErrInvalidTransition. An event naming another channel than the
// attempt's returns ErrChannelMismatch and changes nothing.
func (s *Service) RecordDeliveryEvent(ctx context.Context, ev DeliveryEvent) (DeliveryAttempt, error) {
	err := validator.Apply(
		validator.When(ev.AttemptID == "",
			validator.Required("provider_message_id", ev.ProviderMessageID),
		),
		validator.OneOf("status", ev.Status, []AttemptStatus{
			AttemptDelivered, AttemptOpened, AttemptClicked, AttemptFailed,
		}),
	)
	if err != nil {
		verr := &ValidationError{Cause: err}
		for _, fe := range validator.ExtractValidationErrors(err) {
			verr.Fields = append(verr.Fields, FieldError{Field: fe.Field, Message: fe.Message})
		}
		return DeliveryAttempt{}, verr
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.clock()
	}

	for range maxEventRetries {
		current, err := s.findAttempt(ctx, ev)
		if err != nil {
			return DeliveryAttempt{}, err
		}
		if ev.Channel != "" && ev.Channel != current.Channel {
			return DeliveryAttempt{}, fmt.Errorf("%w: event for %s, attempt %s is %s",
				ErrChannelMismatch, ev.Channel, current.ID, current.Channel)
		}
		next, changed, err := advanceAttempt(ctx, current, ev.Status, ev.OccurredAt, ev.Reason)
		if err != nil {
			return current, err
		}
		if !changed {
			return current, nil
		}
		err = s.ledger.UpdateAttempt(ctx, next, current.Status)
		if errors.Is(err, ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return current, fmt.Errorf("update attempt: %w", err)
		}

		s.logger.LogAttrs(ctx, slog.LevelDebug, "attempt updated",
			logger.AttemptID(next.ID),
			logger.AlertID(next.AlertID),
			logger.Channel(next.Channel),
			logger.Status(next.Status),
		)
		s.notify(ctx, Event{Type: EventAttemptUpdated, OccurredAt: ev.OccurredAt, Attempt: &next})
		return next, nil
	}
	return DeliveryAttempt{}, fmt.Errorf("%w: attempt status kept changing", ErrConcurrentUpdate)
}

func (s *Service) findAttempt(ctx context.Context, ev DeliveryEvent) (DeliveryAttempt, error) {
	if ev.AttemptID != "" {
		return s.ledger.GetAttempt(ctx, ev.AttemptID)
	}
	return s.ledger.FindAttemptByProviderMessageID(ctx, ev.ProviderMessageID)
}

// ReleaseDue dispatches scheduled alerts whose time has come. Each alert is
// claimed with a pending -> processing transition, so concurrent sweeps never
// dispatch the same alert twice. It returns the number of alerts released.
func (s *Service) ReleaseDue(ctx context.Context) (int, error) {
	due, err := s.ledger.DueAlerts(ctx, s.clock(), s.releaseBatch)
	if err != nil {
		return 0, fmt.Errorf("due alerts: %w", err)
	}

	var (
		released int
		errs     []error
	)
	for _, alert := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		claimed, err := s.ledger.TransitionAlert(ctx, alert.ID, AlertPending, AlertProcessing, s.clock())
		if err != nil {
			errs = append(errs, fmt.Errorf("claim alert %s: %w", alert.ID, err))
			continue
		}
		if !claimed {
			continue
		}
		alert.Status = AlertProcessing
		released++

		tmpl, rcpt, err := s.resolve(ctx, alert.TemplateID, alert.RecipientID)
		if err == nil {
			err = s.engine.Validate(tmpl, alert.Variables, rcpt)
		}
		if err != nil {
			// Nothing can be sent any more; close the alert without attempts.
			s.logger.LogAttrs(ctx, slog.LevelWarn, "scheduled alert dropped",
				logger.AlertID(alert.ID),
				logger.TemplateID(alert.TemplateID),
				logger.Error(err),
			)
			errs = append(errs, s.complete(ctx, alert))
			continue
		}

		if _, err := s.deliver(ctx, alert, tmpl, rcpt); err != nil {
			errs = append(errs, err)
		}
	}
	return released, errors.Join(errs...)
}

// DashboardReadHook marks the attempt behind an in-app notification as
// opened when the recipient reads it.
func (s *Service) DashboardReadHook() notifications.ReadHook {
	return func(ctx context.Context, n notifications.Notification) {
		if n.AttemptID == "" {
			return
		}
		at := s.clock()
		if n.ReadAt != nil {
			at = *n.ReadAt
		}
		_, err := s.RecordDeliveryEvent(ctx, DeliveryEvent{
			AttemptID:  n.AttemptID,
			Status:     AttemptOpened,
			OccurredAt: at,
		})
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "dashboard read not recorded",
				logger.AttemptID(n.AttemptID),
				logger.Error(err),
			)
		}
	}
}

func (s *Service) notify(ctx context.Context, e Event) {
	if len(s.observers) == 0 {
		return
	}
	if err := s.observers.Observe(ctx, e); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "observer failed",
			logger.Event(string(e.Type)),
			logger.Error(err),
		)
	}
}
