package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the detection-to-alert pipeline:
// - frame and detection throughput
// - tracker and intrusion state sizes
// - alert emission and suppression
// - event bus delivery and overflow
// - API and WebSocket surfaces

var (
	// Pipeline Metrics
	FramesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_frames_processed_total",
			Help: "Total number of frames processed by the pipeline",
		},
	)

	FramesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_frames_rejected_total",
			Help: "Total number of frames rejected before processing",
		},
		[]string{"reason"}, // "out_of_order"
	)

	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_frame_duration_seconds",
			Help:    "Time spent processing one frame",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	DetectionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_detections_dropped_total",
			Help: "Total number of detections dropped before tracking",
		},
		[]string{"reason"}, // "malformed", "low_confidence"
	)

	// State Metrics
	LiveTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_live_tracks",
			Help: "Current number of live tracks",
		},
	)

	TracksDestroyed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_tracks_destroyed_total",
			Help: "Total number of evicted tracks",
		},
	)

	IntrusionStates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_intrusion_states",
			Help: "Current number of non-outside (track, zone) states",
		},
	)

	ZoneConfigVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_zone_config_version",
			Help: "Version of the zone configuration snapshot in use",
		},
	)

	// Alert Metrics
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_emitted_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"zone_id", "kind"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_suppressed_total",
			Help: "Total number of candidate signals suppressed",
		},
		[]string{"zone_id", "reason"}, // "duplicate", "cooldown", "unpaired"
	)

	// Event Bus Metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_bus_events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"type"},
	)

	BusDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_bus_events_delivered_total",
			Help: "Total number of events delivered to a consumer",
		},
		[]string{"consumer"},
	)

	BusDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_bus_delivery_failures_total",
			Help: "Total number of events abandoned after all delivery attempts",
		},
		[]string{"consumer"},
	)

	BusDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_bus_events_dropped_total",
			Help: "Total number of buffered events dropped on consumer overflow",
		},
		[]string{"consumer"},
	)

	BusBuffered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_bus_buffered_events",
			Help: "Events currently buffered per consumer",
		},
		[]string{"consumer"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Config Metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_config_reloads_total",
			Help: "Total number of monitoring config reload attempts",
		},
		[]string{"result"}, // "success", "error"
	)
)

// RecordFrame records one processed frame
func RecordFrame(duration time.Duration, liveTracks, destroyed, intrusions int) {
	FramesProcessed.Inc()
	FrameDuration.Observe(duration.Seconds())
	LiveTracks.Set(float64(liveTracks))
	TracksDestroyed.Add(float64(destroyed))
	IntrusionStates.Set(float64(intrusions))
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordConfigReload records the outcome of a monitoring config reload
func RecordConfigReload(err error) {
	if err != nil {
		ConfigReloads.WithLabelValues("error").Inc()
		return
	}
	ConfigReloads.WithLabelValues("success").Inc()
}
