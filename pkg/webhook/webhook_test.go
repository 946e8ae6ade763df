package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/webhook"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("posts signed json", func(t *testing.T) {
		t.Parallel()
		const secret = "s3cret"
		var verifyErr error
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "yes", r.Header.Get("X-Custom"))
			verifyErr = webhook.VerifyRequest(secret, r.Header, body, time.Minute)
			_ = json.Unmarshal(body, &got)
			_, _ = w.Write([]byte("ok"))
		}))
		t.Cleanup(srv.Close)

		res, err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"text": "hi"},
			webhook.WithSignature(secret), webhook.WithHeader("X-Custom", "yes"))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "ok", res.Body)
		assert.NotEmpty(t, res.ID)
		assert.NoError(t, verifyErr)
		assert.Equal(t, "hi", got["text"])
	})

	t.Run("4xx is permanent", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no such hook", http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		res, err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"a": "b"})
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
		assert.Contains(t, err.Error(), "no such hook")
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("5xx is not permanent", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		_, err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"a": "b"})
		assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
		assert.NotErrorIs(t, err, webhook.ErrPermanentFailure)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})

		_, err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"a": "b"},
			webhook.WithTimeout(20*time.Millisecond))
		assert.ErrorIs(t, err, webhook.ErrTimeout)
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		for _, u := range []string{"", "ftp://example.com", "http://"} {
			_, err := webhook.NewSender().Send(context.Background(), u, map[string]string{"a": "b"})
			assert.ErrorIs(t, err, webhook.ErrInvalidURL, u)
		}
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.NewSender().Send(context.Background(), "https://example.com", make(chan int))
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
	})
}

func TestSender_CircuitBreaker(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cb := webhook.NewCircuitBreaker(2, 1, time.Hour)
	sender := webhook.NewSender()
	for range 2 {
		_, err := sender.Send(context.Background(), srv.URL, 1, webhook.WithCircuitBreaker(cb))
		require.Error(t, err)
	}

	_, err := sender.Send(context.Background(), srv.URL, 1, webhook.WithCircuitBreaker(cb))
	assert.True(t, webhook.IsCircuitOpen(err))
	assert.Equal(t, int32(2), hits.Load())
}
