// Package metrics exposes the Prometheus registry used by the report and
// exports it as a node_exporter textfile at the end of a run.
//
// All metrics are defined in their respective packages (eox, batch) and
// registered on the default registry via promauto.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer collects every metric registered via promauto on the default registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes a snapshot of all gathered metrics to path in the
// text exposition format. The file is replaced atomically so a collector
// never reads a partial snapshot.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = Gatherer
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Metrics Documentation
//
// Lookup Metrics (pkg/eox):
//   - eox_requests_total{status} (Counter): EoX requests by HTTP status or "network_error"
//   - eox_request_duration_seconds (Histogram): EoX request duration
//   - eox_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - eox_rate_limited_total (Counter): 429 responses honored
//
// Batch Metrics (pkg/batch):
//   - eox_batches_total{outcome} (Counter): Batches by outcome (ok, failed)
//   - eox_serials_total{status} (Counter): Distinct serials by status (found, not_found, failed, invalid)
//   - eox_pages_total (Counter): Result pages fetched
//
// Example Prometheus Queries:
//
//   # Share of serials without EoX data in the last report
//   eox_serials_total{status="not_found"} / ignoring(status) sum(eox_serials_total)
//
//   # Failed batches
//   eox_batches_total{outcome="failed"} > 0
