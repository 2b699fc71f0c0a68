package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

const (
	// Service name for metrics
	ServiceName = "ecoroute"
)

var (
	// MCP tool metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_mcp_requests_total",
			Help: "Total number of MCP tool calls processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_mcp_request_duration_seconds",
			Help:    "MCP tool call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// REST API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_http_requests_total",
			Help: "Total number of REST API requests",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_http_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Nominatim and OSRM
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for external service rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Inbound requests rejected by the per-IP limiter
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by a rate limiter",
		},
		[]string{"scope"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// Trip metrics
	TripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_trips_total",
			Help: "Trip planning runs by travel mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	TripDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_trip_duration_seconds",
			Help:    "End to end trip planning duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"outcome"},
	)

	TripEmissions = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_trip_emissions_grams",
			Help:    "Carbon emissions of planned trips in grams",
			Buckets: []float64{0, 100, 500, 1000, 2500, 5000, 10000, 25000},
		},
		[]string{"mode"},
	)

	RewardPointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_reward_points_total",
			Help: "Reward points granted by travel mode",
		},
		[]string{"mode"},
	)

	DiseasePredictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_disease_predictions_total",
			Help: "Crop disease predictions by label",
		},
		[]string{"label"},
	)

	MapRenders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecoroute_map_renders_total",
			Help: "Routes drawn on a map surface",
		},
	)

	MapSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_map_sessions",
			Help: "Live map surfaces in the session cache",
		},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "vcs_revision", "build_time"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// TransportInfo describes how the server is reachable.
type TransportInfo struct {
	Type     string `json:"type"` // "http_streaming" or "stdio"
	HTTPAddr string `json:"http_addr,omitempty"`
}

// ServiceHealth is the body of /health.
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time"`
	Connections   map[string]ConnStatus `json:"connections"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
	Transport     *TransportInfo        `json:"transport,omitempty"`
}

type ConnStatus struct {
	Status    string    `json:"status"` // "connected", "error"
	Latency   int64     `json:"latency_ms"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, status(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordHTTPRequest(route string, code int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, statusClass(code)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordRateLimitExceeded(scope string) {
	RateLimitExceeded.WithLabelValues(scope).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// ClientHooks feeds the OSM client's request hooks into the external
// service metrics.
func ClientHooks() *osm.MonitoringHooks {
	return &osm.MonitoringHooks{
		OnResponse:  RecordExternalServiceRequest,
		OnRateLimit: RecordRateLimitWait,
		OnError: func(service, errorType string) {
			RecordError(service, errorType)
		},
	}
}

// Recorder turns pipeline outcomes and detector predictions into
// metrics.
type Recorder struct{}

// TripPlanned records one pipeline run. metrics is nil unless the run
// succeeded.
func (Recorder) TripPlanned(mode trip.TravelMode, outcome string, metrics *trip.Metrics, elapsed time.Duration) {
	label := string(mode)
	if label == "" {
		label = "unknown"
	}
	TripsTotal.WithLabelValues(label, outcome).Inc()
	TripDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if metrics == nil {
		return
	}
	TripEmissions.WithLabelValues(label).Observe(metrics.EmissionsGrams.InexactFloat64())
	RewardPointsTotal.WithLabelValues(label).Add(float64(metrics.RewardPoints))
	MapRenders.Inc()
}

// DiseasePredicted counts one detector prediction.
func (Recorder) DiseasePredicted(label string) {
	DiseasePredictions.WithLabelValues(label).Inc()
}
