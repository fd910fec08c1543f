// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Iron Drawer collector and is served by Handler.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		StorageOps, StorageDuration,
		MetadataSynthesized, UploadFiles,
		EventHandlerFailures, ActiveWidgets,
	)
}

// StorageOps counts object store calls by operation and outcome.
var StorageOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "drawer_storage_operations_total",
		Help: "Object store calls by operation and outcome.",
	},
	[]string{"op", "outcome"}, // outcome: ok | error
)

// StorageDuration is object store call latency in seconds.
var StorageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "drawer_storage_operation_duration_seconds",
		Help:    "Object store call latency.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op"},
)

// MetadataSynthesized counts files that were given an id or upload date on
// first listing.
var MetadataSynthesized = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "drawer_metadata_synthesized_total",
		Help: "Files whose missing metadata was synthesized, by outcome.",
	},
	[]string{"outcome"}, // persisted | failed
)

// UploadFiles counts uploaded files by outcome.
var UploadFiles = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "drawer_upload_files_total",
		Help: "Files submitted for upload, by outcome.",
	},
	[]string{"outcome"}, // ok | invalid | conflict | error
)

// EventHandlerFailures counts event handlers that returned an error or panicked.
var EventHandlerFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "drawer_event_handler_failures_total",
		Help: "Event handler failures by event kind.",
	},
	[]string{"kind"},
)

// ActiveWidgets is the number of mounted widget instances.
var ActiveWidgets = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "drawer_active_widgets",
		Help: "Mounted widget instances.",
	},
)

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
