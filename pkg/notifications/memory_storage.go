package notifications

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage.
type MemoryStorage struct {
	byRecipient map[string][]Notification
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byRecipient: make(map[string][]Notification)}
}

func (s *MemoryStorage) Create(_ context.Context, n Notification) error {
	if n.ID == "" || n.RecipientID == "" {
		return ErrInvalidNotification
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byRecipient[n.RecipientID] = append(s.byRecipient[n.RecipientID], n)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, recipientID, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.byRecipient[recipientID] {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, ErrNotificationNotFound
}

// List returns notifications newest first, skipping expired ones.
func (s *MemoryStorage) List(_ context.Context, recipientID string, opts ListOptions) ([]Notification, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.RLock()
	filtered := make([]Notification, 0, len(s.byRecipient[recipientID]))
	for _, n := range s.byRecipient[recipientID] {
		if n.IsExpired(now) || (opts.OnlyUnread && n.Read) {
			continue
		}
		filtered = append(filtered, n)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(filtered, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Offset >= len(filtered) {
		return []Notification{}, nil
	}
	end := len(filtered)
	if opts.Limit > 0 && opts.Offset+opts.Limit < end {
		end = opts.Offset + opts.Limit
	}
	return filtered[opts.Offset:end], nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, recipientID string, at time.Time, ids ...string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []Notification
	items := s.byRecipient[recipientID]
	for i := range items {
		if items[i].Read || !slices.Contains(ids, items[i].ID) {
			continue
		}
		readAt := at
		items[i].Read = true
		items[i].ReadAt = &readAt
		changed = append(changed, items[i])
	}
	return changed, nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, recipientID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.byRecipient[recipientID] {
		if !n.Read && !n.IsExpired(now) {
			count++
		}
	}
	return count, nil
}
