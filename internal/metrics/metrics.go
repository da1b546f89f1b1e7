// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline and HTTP layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AlertsImported counts alerts accepted during imports, by source.
	AlertsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triagehub_alerts_imported_total",
		Help: "Number of alerts imported, labeled by alert source.",
	}, []string{"source"})

	// AlertsRejected counts records rejected during normalization, by reason.
	AlertsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triagehub_alerts_rejected_total",
		Help: "Number of records rejected during normalization, labeled by reason.",
	}, []string{"reason"})

	// AlertsDuplicate counts records skipped as duplicates.
	AlertsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triagehub_alerts_duplicate_total",
		Help: "Number of records skipped because their alert_id already exists.",
	})

	// IncidentsCreated counts incidents opened by correlation.
	IncidentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triagehub_incidents_created_total",
		Help: "Number of incidents created by the correlator.",
	})

	// ImportDuration observes wall time per import batch.
	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triagehub_import_duration_seconds",
		Help:    "Duration of import batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// Recorrelations counts full recorrelation runs.
	Recorrelations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triagehub_recorrelations_total",
		Help: "Number of full recorrelation runs.",
	})

	// NotificationsSent counts Slack notifications, by outcome.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triagehub_notifications_sent_total",
		Help: "Number of Slack notifications attempted, labeled by outcome.",
	}, []string{"outcome"})
)

// Handler returns the HTTP handler serving the Prometheus text exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}
