package notifications

import (
	"context"

	"github.com/xpertseller/alertkit/pkg/broadcast"
)

// Deliverer pushes a stored notification to connected clients.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// TopicDeliverer publishes notifications on a per-recipient broadcast topic.
type TopicDeliverer struct {
	topics *broadcast.Topics[Notification]
}

func NewTopicDeliverer(topics *broadcast.Topics[Notification]) *TopicDeliverer {
	return &TopicDeliverer{topics: topics}
}

// Deliver publishes n. A recipient without open dashboards is not an error:
// the notification stays in storage until it is listed.
func (d *TopicDeliverer) Deliver(ctx context.Context, n Notification) error {
	_, err := d.topics.Publish(ctx, n.RecipientID, n)
	return err
}

// Subscribe opens a live feed of notifications for recipientID.
func (d *TopicDeliverer) Subscribe(ctx context.Context, recipientID string) (broadcast.Subscriber[Notification], error) {
	return d.topics.Subscribe(ctx, recipientID)
}

// NoOpDeliverer discards deliveries.
type NoOpDeliverer struct{}

func (NoOpDeliverer) Deliver(context.Context, Notification) error { return nil }
