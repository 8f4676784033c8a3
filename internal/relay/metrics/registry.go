package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all relay metrics and provides a clean interface
// for recording them without global state.
type Registry struct {
	registry *prometheus.Registry

	// Ingest metrics
	ingestTotal *prometheus.CounterVec

	// Broadcast metrics
	broadcastTotal        *prometheus.CounterVec
	broadcastDroppedTotal *prometheus.CounterVec
	subscribersActive     prometheus.Gauge

	// Forwarder metrics
	forwardTotal        *prometheus.CounterVec
	forwardDuration     *prometheus.HistogramVec
	forwardDroppedTotal prometheus.Counter

	// Catalog metrics
	catalogRequestTotal    *prometheus.CounterVec
	catalogRequestDuration prometheus.Histogram

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		ingestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_ingest_total",
				Help: "Total number of inbound device requests",
			},
			[]string{"endpoint", "status"},
		),

		broadcastTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_broadcast_total",
				Help: "Total number of events broadcast to subscribers",
			},
			[]string{"event"},
		),

		broadcastDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_broadcast_dropped_total",
				Help: "Total number of deliveries dropped because a subscriber was evicted",
			},
			[]string{"event"},
		),

		subscribersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_subscribers_active",
				Help: "Current number of connected dashboard subscribers",
			},
		),

		forwardTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_forward_total",
				Help: "Total number of sink forwarding attempts",
			},
			[]string{"sink", "status"}, // status: success, error
		),

		forwardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_forward_duration_seconds",
				Help:    "Time spent appending records to the external log",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),

		forwardDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_forward_dropped_total",
				Help: "Total number of sink tasks dropped because the queue was full",
			},
		),

		catalogRequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_catalog_request_total",
				Help: "Total number of catalog listing requests",
			},
			[]string{"status"}, // status: success, error
		),

		catalogRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_catalog_request_duration_seconds",
				Help:    "Time spent querying the external media catalog",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_start_time_seconds",
				Help: "Unix timestamp when the relay started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.ingestTotal,
		r.broadcastTotal,
		r.broadcastDroppedTotal,
		r.subscribersActive,
		r.forwardTotal,
		r.forwardDuration,
		r.forwardDroppedTotal,
		r.catalogRequestTotal,
		r.catalogRequestDuration,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// RecordIngest records one inbound device request and its response status.
func (r *Registry) RecordIngest(endpoint string, status int) {
	r.ingestTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// RecordBroadcast records a fan-out of one event to count subscribers.
func (r *Registry) RecordBroadcast(event string) {
	r.broadcastTotal.WithLabelValues(event).Inc()
}

// RecordBroadcastDrop records a delivery abandoned because the subscriber
// was evicted mid-broadcast.
func (r *Registry) RecordBroadcastDrop(event string) {
	r.broadcastDroppedTotal.WithLabelValues(event).Inc()
}

// SetSubscribersActive updates the connected subscriber gauge.
func (r *Registry) SetSubscribersActive(n int) {
	r.subscribersActive.Set(float64(n))
}

// RecordForward records one completed sink forwarding attempt.
func (r *Registry) RecordForward(sink string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.forwardTotal.WithLabelValues(sink, status).Inc()
	r.forwardDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// RecordForwardDrop records a sink task dropped on enqueue.
func (r *Registry) RecordForwardDrop() {
	r.forwardDroppedTotal.Inc()
}

// RecordCatalogRequest records one catalog listing request.
func (r *Registry) RecordCatalogRequest(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.catalogRequestTotal.WithLabelValues(status).Inc()
	r.catalogRequestDuration.Observe(duration.Seconds())
}

// SetSystemInfo sets the system information metric.
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}
