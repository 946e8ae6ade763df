package webhook_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/webhook"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event":"delivered"}`)
	sig, err := webhook.SignPayload("secret", payload)
	require.NoError(t, err)
	assert.Len(t, sig.Signature, 64)

	assert.NoError(t, webhook.VerifySignature("secret", payload, sig, time.Minute))
	assert.ErrorIs(t, webhook.VerifySignature("other", payload, sig, time.Minute), webhook.ErrInvalidSignature)
	assert.ErrorIs(t, webhook.VerifySignature("secret", []byte(`{}`), sig, time.Minute), webhook.ErrInvalidSignature)

	old := sig
	old.Timestamp -= 3600
	assert.ErrorIs(t, webhook.VerifySignature("secret", payload, old, time.Minute), webhook.ErrInvalidSignature)

	_, err = webhook.SignPayload("", payload)
	assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
}

func TestVerifyRequest(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"status":"opened"}`)
	sig, err := webhook.SignPayload("k", payload)
	require.NoError(t, err)

	h := http.Header{}
	sig.Apply(h)
	assert.NoError(t, webhook.VerifyRequest("k", h, payload, time.Minute))

	missing := http.Header{}
	assert.ErrorIs(t, webhook.VerifyRequest("k", missing, payload, time.Minute), webhook.ErrInvalidSignature)

	bad := http.Header{}
	bad.Set(webhook.HeaderSignature, sig.Signature)
	bad.Set(webhook.HeaderTimestamp, "abc")
	assert.ErrorIs(t, webhook.VerifyRequest("k", bad, payload, time.Minute), webhook.ErrInvalidSignature)

	h.Set(webhook.HeaderTimestamp, strconv.FormatInt(sig.Timestamp+1, 10))
	assert.ErrorIs(t, webhook.VerifyRequest("k", h, payload, time.Minute), webhook.ErrInvalidSignature)
}
