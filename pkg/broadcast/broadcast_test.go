package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/broadcast"
)

func receive[T any](t *testing.T, sub broadcast.Subscriber[T]) broadcast.Message[T] {
	t.Helper()
	select {
	case msg, ok := <-sub.Receive(context.Background()):
		require.True(t, ok, "subscriber closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return broadcast.Message[T]{}
}

func TestMemoryBroadcaster(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fan-out", func(t *testing.T) {
		t.Parallel()
		b := broadcast.NewMemoryBroadcaster[string](4)
		t.Cleanup(func() { _ = b.Close() })

		s1 := b.Subscribe(ctx)
		s2 := b.Subscribe(ctx)

		n, err := b.Broadcast(ctx, broadcast.Message[string]{Data: "hi"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, "hi", receive(t, s1).Data)
		assert.Equal(t, "hi", receive(t, s2).Data)
	})

	t.Run("slow subscriber is dropped", func(t *testing.T) {
		t.Parallel()
		b := broadcast.NewMemoryBroadcaster[int](1)
		t.Cleanup(func() { _ = b.Close() })

		sub := b.Subscribe(ctx)
		n, err := b.Broadcast(ctx, broadcast.Message[int]{Data: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = b.Broadcast(ctx, broadcast.Message[int]{Data: 2})
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, 1, receive(t, sub).Data)
	})

	t.Run("context cancellation unsubscribes", func(t *testing.T) {
		t.Parallel()
		b := broadcast.NewMemoryBroadcaster[int](1)
		t.Cleanup(func() { _ = b.Close() })

		subCtx, cancel := context.WithCancel(ctx)
		b.Subscribe(subCtx)
		require.Equal(t, 1, b.Len())

		cancel()
		assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("close", func(t *testing.T) {
		t.Parallel()
		b := broadcast.NewMemoryBroadcaster[int](1)
		sub := b.Subscribe(context.Background())

		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		_, ok := <-sub.Receive(ctx)
		assert.False(t, ok)

		_, err := b.Broadcast(ctx, broadcast.Message[int]{Data: 1})
		assert.ErrorIs(t, err, broadcast.ErrClosed)
	})
}

func TestTopics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("topics are isolated", func(t *testing.T) {
		t.Parallel()
		topics := broadcast.NewTopics[string]()
		t.Cleanup(func() { _ = topics.Close() })

		alice, err := topics.Subscribe(ctx, "alice")
		require.NoError(t, err)
		bob, err := topics.Subscribe(ctx, "bob")
		require.NoError(t, err)

		n, err := topics.Publish(ctx, "alice", "for alice")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		msg := receive(t, alice)
		assert.Equal(t, "alice", msg.Topic)
		assert.Equal(t, "for alice", msg.Data)

		select {
		case <-bob.Receive(ctx):
			t.Fatal("bob must not receive alice's message")
		default:
		}
	})

	t.Run("publish without subscribers", func(t *testing.T) {
		t.Parallel()
		topics := broadcast.NewTopics[string]()
		t.Cleanup(func() { _ = topics.Close() })

		n, err := topics.Publish(ctx, "nobody", "x")
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = topics.Publish(ctx, "", "x")
		assert.ErrorIs(t, err, broadcast.ErrTopicRequired)
	})

	t.Run("evicted topic closes subscribers", func(t *testing.T) {
		t.Parallel()
		topics := broadcast.NewTopics[int](broadcast.WithMaxTopics(1))
		t.Cleanup(func() { _ = topics.Close() })

		first, err := topics.Subscribe(ctx, "first")
		require.NoError(t, err)
		_, err = topics.Subscribe(ctx, "second")
		require.NoError(t, err)

		select {
		case _, ok := <-first.Receive(ctx):
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("evicted subscriber was not closed")
		}
	})

	t.Run("closed topics", func(t *testing.T) {
		t.Parallel()
		topics := broadcast.NewTopics[int]()
		require.NoError(t, topics.Close())

		_, err := topics.Subscribe(ctx, "x")
		assert.ErrorIs(t, err, broadcast.ErrClosed)
	})
}
