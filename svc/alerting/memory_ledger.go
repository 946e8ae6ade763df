package alerting

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger for development and tests.
type MemoryLedger struct {
	mu         sync.RWMutex
	alerts     map[string]Alert
	attempts   map[string]DeliveryAttempt
	byAlert    map[string][]string
	byProvider map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		alerts:     make(map[string]Alert),
		attempts:   make(map[string]DeliveryAttempt),
		byAlert:    make(map[string][]string),
		byProvider: make(map[string]string),
	}
}

func cloneAlert(a Alert) Alert {
	a.Variables = maps.Clone(a.Variables)
	a.Channels = slices.Clone(a.Channels)
	return a
}

func (l *MemoryLedger) CreateAlert(_ context.Context, a Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.alerts[a.ID]; ok {
		return ErrAlreadyExists
	}
	l.alerts[a.ID] = cloneAlert(a)
	return nil
}

func (l *MemoryLedger) GetAlert(_ context.Context, id string) (Alert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.alerts[id]
	if !ok {
		return Alert{}, ErrAlertNotFound
	}
	return cloneAlert(a), nil
}

func (l *MemoryLedger) TransitionAlert(_ context.Context, id string, from, to AlertStatus, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.alerts[id]
	if !ok {
		return false, ErrAlertNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = at
	l.alerts[id] = a
	return true, nil
}

func (l *MemoryLedger) DueAlerts(_ context.Context, now time.Time, limit int) ([]Alert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Alert
	for _, a := range l.alerts {
		if a.Status == AlertPending && !a.ScheduledAt.After(now) {
			out = append(out, cloneAlert(a))
		}
	}
	slices.SortFunc(out, func(a, b Alert) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLedger) CountAlerts(_ context.Context, recipientID string, since time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, a := range l.alerts {
		if a.RecipientID == recipientID && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *MemoryLedger) RecordAttempt(_ context.Context, a DeliveryAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.attempts[a.ID]; ok {
		return ErrAlreadyExists
	}
	for _, id := range l.byAlert[a.AlertID] {
		if l.attempts[id].Sequence == a.Sequence {
			return ErrAlreadyExists
		}
	}
	l.attempts[a.ID] = a
	l.byAlert[a.AlertID] = append(l.byAlert[a.AlertID], a.ID)
	if a.ProviderMessageID != "" {
		l.byProvider[a.ProviderMessageID] = a.ID
	}
	return nil
}

func (l *MemoryLedger) GetAttempt(_ context.Context, id string) (DeliveryAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.attempts[id]
	if !ok {
		return DeliveryAttempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (l *MemoryLedger) FindAttemptByProviderMessageID(_ context.Context, providerMessageID string) (DeliveryAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byProvider[providerMessageID]
	if !ok || providerMessageID == "" {
		return DeliveryAttempt{}, ErrAttemptNotFound
	}
	return l.attempts[id], nil
}

func (l *MemoryLedger) UpdateAttempt(_ context.Context, a DeliveryAttempt, expected AttemptStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.attempts[a.ID]
	if !ok {
		return ErrAttemptNotFound
	}
	if cur.Status != expected {
		return ErrConcurrentUpdate
	}
	l.attempts[a.ID] = a
	if a.ProviderMessageID != "" {
		l.byProvider[a.ProviderMessageID] = a.ID
	}
	return nil
}

func (l *MemoryLedger) ListAttempts(_ context.Context, alertID string) ([]DeliveryAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.byAlert[alertID]
	out := make([]DeliveryAttempt, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.attempts[id])
	}
	slices.SortStableFunc(out, func(a, b DeliveryAttempt) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return out, nil
}

func (l *MemoryLedger) QueryAttempts(_ context.Context, recipientID string, since time.Time) ([]DeliveryAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []DeliveryAttempt
	for _, a := range l.attempts {
		if a.RecipientID == recipientID && !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, compareAttempts)
	return out, nil
}

// compareAttempts orders by creation time, then by position within an alert.
func compareAttempts(a, b DeliveryAttempt) int {
	return cmp.Or(
		a.CreatedAt.Compare(b.CreatedAt),
		cmp.Compare(a.AlertID, b.AlertID),
		cmp.Compare(a.Sequence, b.Sequence),
		cmp.Compare(a.ID, b.ID),
	)
}
