// Package metrics exposes the Prometheus registry shared by the tutti client
// packages. Metrics are defined next to the code that records them (client,
// pagination, history) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the tutti client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry collects.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric family the client packages define.
var Names = []string{
	"tutti_requests_total",
	"tutti_request_duration_seconds",
	"tutti_errors_total",
	"tutti_retrievals_total",
	"tutti_pages_fetched_total",
	"tutti_page_fetch_duration_seconds",
	"tutti_batch_pages",
	"tutti_history_records_total",
	"tutti_history_errors_total",
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - tutti_requests_total{operation, status} (Counter): HTTP exchanges by operation (bootstrap, page) and status
//   - tutti_request_duration_seconds{operation} (Histogram): HTTP exchange duration by operation
//   - tutti_errors_total{class} (Counter): Failed retrievals by class (request, timeout, csrf_token, parse)
//   - tutti_retrievals_total{outcome} (Counter): Retrieval calls by outcome (succeeded, failed)
//
// Pagination Metrics (pkg/pagination):
//   - tutti_pages_fetched_total{result} (Counter): Page fetches by result (ok or error class)
//   - tutti_page_fetch_duration_seconds (Histogram): Single page fetch duration
//   - tutti_batch_pages (Histogram): Pages attempted per retrieval
//
// History Metrics (pkg/history):
//   - tutti_history_records_total (Counter): Searches recorded
//   - tutti_history_errors_total{operation} (Counter): Redis errors by operation
//
// Example Prometheus Queries:
//
//   # Retrieval Failure Rate
//   sum(rate(tutti_retrievals_total{outcome="failed"}[5m])) / sum(rate(tutti_retrievals_total[5m]))
//
//   # Timeouts per minute
//   rate(tutti_errors_total{class="timeout"}[1m]) * 60
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(tutti_page_fetch_duration_seconds_bucket[5m]))
//
//   # CSRF handshake failures
//   rate(tutti_errors_total{class="csrf_token"}[5m])
