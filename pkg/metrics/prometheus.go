// Package metrics provides Prometheus metrics for the gamification service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector the service exports. A nil *Manager is valid
// and records nothing.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	pointsAwarded        *prometheus.CounterVec
	achievementsUnlocked *prometheus.CounterVec
	chainFailures        *prometheus.CounterVec
	eventsReceived       *prometheus.CounterVec
	statsRefreshDuration prometheus.Histogram
	usersRecalculated    prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a Manager on a private registry unless WithRegistry is given.
func New(opts ...Option) *Manager {
	m := &Manager{
		namespace: "pivoine",
		subsystem: "gamification",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.pointsAwarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "points_awarded_total",
		Help:      "Ledger entries written, by action code",
	}, []string{"action"})

	m.achievementsUnlocked = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "achievements_unlocked_total",
		Help:      "Locked to unlocked transitions, by achievement code",
	}, []string{"code"})

	m.chainFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chain_failures_total",
		Help:      "Failures swallowed after a committed ledger write, by stage",
	}, []string{"stage"})

	m.eventsReceived = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_received_total",
		Help:      "Domain events received, by type and source",
	}, []string{"type", "source"})

	m.statsRefreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stats_refresh_duration_seconds",
		Help:      "Time spent recomputing one user's stats row",
		Buckets:   m.buckets,
	})

	m.usersRecalculated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "users_recalculated_total",
		Help:      "Users refreshed by full recompute passes",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by method, route and status",
	}, []string{"method", "route", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by method and route",
		Buckets:   m.buckets,
	}, []string{"method", "route"})
}

func (m *Manager) PointsAwarded(action string) {
	if m == nil {
		return
	}
	m.pointsAwarded.WithLabelValues(action).Inc()
}

func (m *Manager) AchievementUnlocked(code string) {
	if m == nil {
		return
	}
	m.achievementsUnlocked.WithLabelValues(code).Inc()
}

func (m *Manager) ChainFailure(stage string) {
	if m == nil {
		return
	}
	m.chainFailures.WithLabelValues(stage).Inc()
}

func (m *Manager) EventReceived(eventType, source string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(eventType, source).Inc()
}

func (m *Manager) ObserveStatsRefresh(d time.Duration) {
	if m == nil {
		return
	}
	m.statsRefreshDuration.Observe(d.Seconds())
}

func (m *Manager) UsersRecalculated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.usersRecalculated.Add(float64(n))
}

func (m *Manager) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
