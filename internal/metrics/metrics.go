package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for pasteagent.
type Metrics struct {
	registry *prometheus.Registry

	// Gateway HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Outbound Pastebin calls.
	UpstreamCallsTotal  *prometheus.CounterVec
	UpstreamDuration    *prometheus.HistogramVec
	UpstreamErrorsTotal *prometheus.CounterVec

	// Rate limiter decisions.
	LimiterDecisionsTotal *prometheus.CounterVec
	LimiterDelay          *prometheus.HistogramVec

	// Call log collector.
	CollectorBufferSize    prometheus.Gauge
	CollectorFlushesTotal  *prometheus.CounterVec
	CollectorFlushDuration prometheus.Histogram
	CollectorCallsTotal    prometheus.Counter

	// Gateway token auth.
	AuthFailuresTotal  prometheus.Counter
	AuthSuccessesTotal prometheus.Counter

	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasteagent_http_requests_total",
			Help: "Total number of gateway HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pasteagent_http_request_duration_seconds",
			Help:    "Gateway HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		UpstreamCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasteagent_upstream_calls_total",
			Help: "Total number of Pastebin calls by api_option and outcome.",
		}, []string{"option", "outcome"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pasteagent_upstream_duration_seconds",
			Help:    "Pastebin request duration in seconds, excluding limiter delay.",
			Buckets: prometheus.DefBuckets,
		}, []string{"option"}),

		UpstreamErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasteagent_upstream_errors_total",
			Help: "Total number of Pastebin transport errors by error type.",
		}, []string{"error_type"}),

		LimiterDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasteagent_limiter_decisions_total",
			Help: "Total number of rate limiter decisions.",
		}, []string{"mode", "action"}),

		LimiterDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pasteagent_limiter_delay_seconds",
			Help:    "Delays imposed by the rate limiter in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"mode"}),

		CollectorBufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pasteagent_collector_buffer_size",
			Help: "Current number of buffered call log records.",
		}),

		CollectorFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasteagent_collector_flushes_total",
			Help: "Total number of call log flushes.",
		}, []string{"status"}),

		CollectorFlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pasteagent_collector_flush_duration_seconds",
			Help:    "Duration of call log flushes in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		CollectorCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pasteagent_collector_calls_total",
			Help: "Total number of call log records collected.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pasteagent_auth_failures_total",
			Help: "Total number of rejected gateway tokens.",
		}),

		AuthSuccessesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pasteagent_auth_successes_total",
			Help: "Total number of accepted gateway tokens.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pasteagent_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamCallsTotal,
		m.UpstreamDuration,
		m.UpstreamErrorsTotal,
		m.LimiterDecisionsTotal,
		m.LimiterDelay,
		m.CollectorBufferSize,
		m.CollectorFlushesTotal,
		m.CollectorFlushDuration,
		m.CollectorCallsTotal,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTPRequest records one gateway request.
func (m *Metrics) ObserveHTTPRequest(method, pathPattern string, statusCode int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// IncUpstreamCalls counts one finished Pastebin call.
func (m *Metrics) IncUpstreamCalls(option, outcome string) {
	m.UpstreamCallsTotal.WithLabelValues(option, outcome).Inc()
}

// ObserveUpstreamDuration records the Pastebin request duration.
func (m *Metrics) ObserveUpstreamDuration(option string, seconds float64) {
	m.UpstreamDuration.WithLabelValues(option).Observe(seconds)
}

// IncUpstreamError increments the transport error counter.
func (m *Metrics) IncUpstreamError(errorType string) {
	m.UpstreamErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncLimiterDecision counts one limiter verdict.
func (m *Metrics) IncLimiterDecision(mode, action string) {
	m.LimiterDecisionsTotal.WithLabelValues(mode, action).Inc()
}

// ObserveLimiterDelay records a scheduled delay.
func (m *Metrics) ObserveLimiterDelay(mode string, seconds float64) {
	m.LimiterDelay.WithLabelValues(mode).Observe(seconds)
}

func (m *Metrics) SetCollectorBufferSize(n int) {
	m.CollectorBufferSize.Set(float64(n))
}

func (m *Metrics) IncCollectorFlush(status string) {
	m.CollectorFlushesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCollectorFlushDuration(seconds float64) {
	m.CollectorFlushDuration.Observe(seconds)
}

func (m *Metrics) IncCollectorCalls() {
	m.CollectorCallsTotal.Inc()
}

// IncAuthFailure increments the gateway auth failure counter.
func (m *Metrics) IncAuthFailure() {
	m.AuthFailuresTotal.Inc()
}

// IncAuthSuccess increments the gateway auth success counter.
func (m *Metrics) IncAuthSuccess() {
	m.AuthSuccessesTotal.Inc()
}
