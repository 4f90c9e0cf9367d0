package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chess_insight"

// Metrics bundles the Prometheus collectors of the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	archiveMonths    *prometheus.CounterVec
	ingestedGames    *prometheus.CounterVec
	engineSessions   *prometheus.CounterVec
	engineDuration   prometheus.Histogram
	enginesRunning   prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		archiveMonths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_months_total",
			Help:      "Archive months requested, by outcome",
		}, []string{"status"}),
		ingestedGames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_games_total",
			Help:      "Fetched games by ingestion result",
		}, []string{"result"}),
		engineSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_sessions_total",
			Help:      "Engine analysis sessions by outcome",
		}, []string{"outcome"}),
		engineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_session_duration_seconds",
			Help:      "Wall time of one engine analysis session",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		enginesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_processes_running",
			Help:      "Engine processes currently alive",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	registry.MustRegister(
		m.archiveMonths,
		m.ingestedGames,
		m.engineSessions,
		m.engineDuration,
		m.enginesRunning,
		m.requestsTotal,
		m.requestDurations,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveArchiveMonth counts one month request; status is ok, empty or failed.
func (m *Metrics) ObserveArchiveMonth(status string) {
	if m == nil {
		return
	}
	m.archiveMonths.WithLabelValues(status).Inc()
}

// ObserveIngest counts one game; result is added, duplicate or failed.
func (m *Metrics) ObserveIngest(result string) {
	if m == nil {
		return
	}
	m.ingestedGames.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEngineSession(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.engineSessions.WithLabelValues(outcome).Inc()
	m.engineDuration.Observe(dur.Seconds())
}

func (m *Metrics) AddRunningEngines(delta float64) {
	if m == nil {
		return
	}
	m.enginesRunning.Add(delta)
}

func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDurations.WithLabelValues(route, method).Observe(dur.Seconds())
}
