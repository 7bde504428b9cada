// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gistblog"

var (
	// BlobOperations counts backend reads and writes by backend, operation and result.
	BlobOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blob_operations_total",
		Help:      "Blob backend operations by backend, operation and result.",
	}, []string{"backend", "op", "result"})

	// FeedFetches counts pull fetches of followed feeds and peer blogs.
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fetches_total",
		Help:      "Feed and peer blog fetches by kind and result.",
	}, []string{"kind", "result"})

	// WebhookDeliveries counts outbound publish notifications.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Outbound webhook deliveries by result.",
	}, []string{"result"})

	// WebhooksReceived counts inbound webhook calls by outcome.
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_received_total",
		Help:      "Inbound webhook calls by outcome.",
	}, []string{"outcome"})
)

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
