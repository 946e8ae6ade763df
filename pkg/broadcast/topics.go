package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xpertseller/alertkit/pkg/cache"
	"github.com/xpertseller/alertkit/pkg/logger"
)

// Topics keeps one MemoryBroadcaster per topic, e.g. one per recipient. The
// number of live topics is bounded; the least recently used topic is closed
// when the bound is exceeded, which also closes its subscribers.
type Topics[T any] struct {
	topics     *cache.LRUCache[string, *MemoryBroadcaster[T]]
	bufferSize int
	maxTopics  int
	logger     *slog.Logger
	mu         sync.Mutex
	closed     bool
}

// TopicsOption configures Topics.
type TopicsOption func(*topicsConfig)

type topicsConfig struct {
	bufferSize int
	maxTopics  int
	logger     *slog.Logger
}

// WithBufferSize sets the per-subscriber buffer. Default 16.
func WithBufferSize(n int) TopicsOption {
	return func(c *topicsConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithMaxTopics bounds the number of live topics. Default 10000.
func WithMaxTopics(n int) TopicsOption {
	return func(c *topicsConfig) {
		if n > 0 {
			c.maxTopics = n
		}
	}
}

func WithLogger(l *slog.Logger) TopicsOption {
	return func(c *topicsConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewTopics creates an empty topic set.
func NewTopics[T any](opts ...TopicsOption) *Topics[T] {
	cfg := topicsConfig{bufferSize: 16, maxTopics: 10000, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Topics[T]{
		topics:     cache.NewLRUCache[string, *MemoryBroadcaster[T]](cfg.maxTopics),
		bufferSize: cfg.bufferSize,
		maxTopics:  cfg.maxTopics,
		logger:     cfg.logger,
	}
	t.topics.SetEvictCallback(func(topic string, b *MemoryBroadcaster[T]) {
		if err := b.Close(); err != nil {
			t.logger.LogAttrs(context.Background(), slog.LevelError, "failed to close evicted topic",
				slog.String("topic", topic),
				logger.Error(err),
			)
		}
	})
	return t
}

func (t *Topics[T]) topic(name string) (*MemoryBroadcaster[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	b, ok := t.topics.Get(name)
	if !ok {
		b = NewMemoryBroadcaster[T](t.bufferSize)
		t.topics.Put(name, b)
	}
	return b, nil
}

// Publish sends data to every subscriber of topic and returns how many
// accepted it. Publishing to a topic without subscribers is not an error.
func (t *Topics[T]) Publish(ctx context.Context, topic string, data T) (int, error) {
	if topic == "" {
		return 0, ErrTopicRequired
	}
	b, err := t.topic(topic)
	if err != nil {
		return 0, err
	}
	return b.Broadcast(ctx, Message[T]{Topic: topic, Data: data})
}

// Subscribe listens on topic until ctx is cancelled or the subscriber is closed.
func (t *Topics[T]) Subscribe(ctx context.Context, topic string) (Subscriber[T], error) {
	if topic == "" {
		return nil, ErrTopicRequired
	}
	b, err := t.topic(topic)
	if err != nil {
		return nil, err
	}
	return b.Subscribe(ctx), nil
}

// Close closes every topic and its subscribers.
func (t *Topics[T]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.topics.Clear()
	return nil
}
