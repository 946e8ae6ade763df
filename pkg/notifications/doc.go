// Package notifications implements the in-app inbox behind the dashboard
// channel. Manager persists each notification through Storage and then pushes
// it to connected clients through a Deliverer, usually a TopicDeliverer that
// publishes on a per-recipient broadcast topic. Marking notifications read
// triggers registered ReadHooks, which lets delivery tracking record opens.
package notifications
