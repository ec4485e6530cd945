// Package metrics holds the Prometheus collectors for the widget API,
// wallet sessions and submitted transactions.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sqmu"

type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	sessions    *prometheus.GaugeVec
	transitions *prometheus.CounterVec

	transactions *prometheus.CounterVec
	actions      *prometheus.CounterVec
	actionTime   *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses a private registry,
// which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Widget API requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Widget API request latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 60},
		}, []string{"method", "route"}),
		sessions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "sessions",
			Help:      "Wallet sessions by state.",
		}, []string{"state"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "transitions_total",
			Help:      "Wallet session state changes.",
		}, []string{"from", "to"}),
		transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transactions_submitted_total",
			Help:      "Transactions handed to the wallet and broadcast, by kind.",
		}, []string{"kind"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "widget",
			Name:      "actions_total",
			Help:      "Widget actions by name and outcome kind.",
		}, []string{"action", "result"}),
		actionTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "widget",
			Name:      "action_duration_seconds",
			Help:      "Time from action start to confirmation or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"action"}),
	}
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// SessionChanged moves one session from one state gauge to another.
func (m *Metrics) SessionChanged(from, to string) {
	if from == to {
		return
	}
	if from != "" {
		m.sessions.WithLabelValues(from).Dec()
	}
	m.sessions.WithLabelValues(to).Inc()
	m.transitions.WithLabelValues(from, to).Inc()
}

// SessionRemoved drops a session that was in state.
func (m *Metrics) SessionRemoved(state string) {
	m.sessions.WithLabelValues(state).Dec()
}

func (m *Metrics) Submitted(kind string) {
	m.transactions.WithLabelValues(kind).Inc()
}

// Action records a finished widget action. result is "ok" or an error kind.
func (m *Metrics) Action(action, result string, d time.Duration) {
	m.actions.WithLabelValues(action, result).Inc()
	m.actionTime.WithLabelValues(action).Observe(d.Seconds())
}
