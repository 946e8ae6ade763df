// Package events forwards alerting ledger events to other systems: a
// RabbitMQ topic exchange for downstream consumers and an OpenSearch index
// that mirrors every delivery attempt for search and dashboards.
//
// Both are alerting.Observer implementations and are attached with
// alerting.WithObservers.
package events
