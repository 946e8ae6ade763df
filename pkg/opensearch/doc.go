// Package opensearch connects to an OpenSearch cluster. Delivery attempt
// events are indexed there for search and dashboards.
package opensearch
