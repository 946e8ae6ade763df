package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/xpertseller/alertkit/svc/alerting"
)

var ErrIndexRejected = errors.New("events: opensearch rejected document")

// attemptDocument is the indexed shape of a delivery attempt.
type attemptDocument struct {
	alerting.DeliveryAttempt
	LastEvent alerting.EventType `json:"last_event"`
	IndexedAt time.Time          `json:"indexed_at"`
}

// Indexer mirrors delivery attempts into an OpenSearch index, one document
// per attempt keyed by attempt id. Alert events are ignored.
type Indexer struct {
	transport opensearchapi.Transport
	index     string
	clock     func() time.Time
}

type IndexerOption func(*Indexer)

func WithIndexerClock(clock func() time.Time) IndexerOption {
	return func(i *Indexer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// NewIndexer accepts an *opensearch.Client or any other transport.
func NewIndexer(transport opensearchapi.Transport, index string, opts ...IndexerOption) *Indexer {
	i := &Indexer{transport: transport, index: index, clock: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Indexer) Observe(ctx context.Context, e alerting.Event) error {
	if e.Attempt == nil {
		return nil
	}
	body, err := json.Marshal(attemptDocument{
		DeliveryAttempt: *e.Attempt,
		LastEvent:       e.Type,
		IndexedAt:       i.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("events: encode attempt %s: %w", e.Attempt.ID, err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:      i.index,
		DocumentID: e.Attempt.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.transport)
	if err != nil {
		return fmt.Errorf("events: index attempt %s: %w", e.Attempt.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("%w: %s: %s", ErrIndexRejected, res.Status(), bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
