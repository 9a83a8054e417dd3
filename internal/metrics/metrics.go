// Package metrics records scan counters in a private Prometheus registry and
// exports them for the node_exporter textfile collector.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "partnerscan"

// Collector holds the scan metrics.
//
// Metrics:
//   - partnerscan_pages_scanned_total: pages processed, by HTTP status class
//   - partnerscan_findings_total: reported findings, by rule and severity
//   - partnerscan_suppressed_total: findings removed by suppressions, by rule
//   - partnerscan_fetch_errors_total: pages that could not be fetched
//   - partnerscan_page_scan_seconds: fetch-to-findings time per page
//   - partnerscan_last_run_timestamp_seconds: completion time of the last run
type Collector struct {
	registry *prometheus.Registry

	pagesScanned   *prometheus.CounterVec
	findings       *prometheus.CounterVec
	suppressed     *prometheus.CounterVec
	fetchErrors    prometheus.Counter
	pageDuration   prometheus.Histogram
	lastRunSeconds prometheus.Gauge
}

// NewCollector creates a collector registered in a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		pagesScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_scanned_total",
				Help:      "Pages processed, by HTTP status class",
			},
			[]string{"status"},
		),

		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Findings reported after suppressions",
			},
			[]string{"rule_id", "severity"},
		),

		suppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suppressed_total",
				Help:      "Findings removed by policy suppressions",
			},
			[]string{"rule_id"},
		),

		fetchErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Pages that could not be fetched",
			},
		),

		pageDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_scan_seconds",
				Help:      "Time to fetch and evaluate one page",
				// Page fetches range from sub-second to the 25s timeout
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 60},
			},
		),

		lastRunSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last scan run completed",
			},
		),
	}

	c.registry.MustRegister(
		c.pagesScanned,
		c.findings,
		c.suppressed,
		c.fetchErrors,
		c.pageDuration,
		c.lastRunSeconds,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordPage records one processed page. status is the HTTP status, or a
// negative value when the fetch failed.
func (c *Collector) RecordPage(status int, duration time.Duration) {
	c.pagesScanned.WithLabelValues(StatusClass(status)).Inc()
	if status < 0 {
		c.fetchErrors.Inc()
	}
	c.pageDuration.Observe(duration.Seconds())
}

// RecordFinding counts one reported finding.
func (c *Collector) RecordFinding(ruleID, severity string) {
	c.findings.WithLabelValues(ruleID, severity).Inc()
}

// RecordSuppressed counts one suppressed finding.
func (c *Collector) RecordSuppressed(ruleID string) {
	c.suppressed.WithLabelValues(ruleID).Inc()
}

// RecordRunComplete stamps the completion time of a run.
func (c *Collector) RecordRunComplete(t time.Time) {
	c.lastRunSeconds.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// StatusClass buckets an HTTP status into "2xx", "3xx", ... or "error".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
