package alerting

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xpertseller/alertkit/pkg/cache"
)

// RecipientDirectory resolves recipient profiles.
// Implementations return ErrRecipientNotFound for unknown ids.
type RecipientDirectory interface {
	GetRecipientContext(ctx context.Context, recipientID string) (Recipient, error)
}

// TemplateStore resolves templates.
// Implementations return ErrTemplateNotFound for unknown ids.
type TemplateStore interface {
	GetTemplate(ctx context.Context, templateID string) (Template, error)
}

// MemoryDirectory is a RecipientDirectory backed by a map.
type MemoryDirectory struct {
	mu         sync.RWMutex
	recipients map[string]Recipient
}

func NewMemoryDirectory(recipients ...Recipient) *MemoryDirectory {
	d := &MemoryDirectory{recipients: make(map[string]Recipient, len(recipients))}
	for _, r := range recipients {
		d.Put(r)
	}
	return d
}

// Put adds or replaces a recipient.
func (d *MemoryDirectory) Put(r Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients[r.ID] = cloneRecipient(r)
}

func (d *MemoryDirectory) GetRecipientContext(_ context.Context, id string) (Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.recipients[id]
	if !ok {
		return Recipient{}, ErrRecipientNotFound
	}
	return cloneRecipient(r), nil
}

func cloneRecipient(r Recipient) Recipient {
	r.Contacts = maps.Clone(r.Contacts)
	r.PreferredChannels = slices.Clone(r.PreferredChannels)
	return r
}

// MemoryTemplates is a TemplateStore backed by a map.
type MemoryTemplates struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewMemoryTemplates(templates ...Template) *MemoryTemplates {
	s := &MemoryTemplates{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		s.Put(t)
	}
	return s
}

func (s *MemoryTemplates) Put(t Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.RequiredVariables = slices.Clone(t.RequiredVariables)
	s.templates[t.ID] = t
}

func (s *MemoryTemplates) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, id)
}

func (s *MemoryTemplates) GetTemplate(_ context.Context, id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	t.RequiredVariables = slices.Clone(t.RequiredVariables)
	return t, nil
}

// CachedTemplates memoizes a slower TemplateStore in an LRU with a TTL.
// Misses are not cached.
type CachedTemplates struct {
	next  TemplateStore
	cache *cache.LRUCache[string, Template]
}

func NewCachedTemplates(next TemplateStore, capacity int, ttl time.Duration) *CachedTemplates {
	return &CachedTemplates{
		next:  next,
		cache: cache.NewLRUCache[string, Template](capacity, cache.WithTTL(ttl)),
	}
}

func (c *CachedTemplates) GetTemplate(ctx context.Context, id string) (Template, error) {
	return c.cache.GetOrLoad(ctx, id, c.next.GetTemplate)
}

// Invalidate drops one cached template, or all of them when id is empty.
func (c *CachedTemplates) Invalidate(id string) {
	if id == "" {
		c.cache.Clear()
		return
	}
	c.cache.Remove(id)
}
