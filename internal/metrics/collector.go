// Package metrics exposes Prometheus instrumentation for command
// execution, plan orchestration, and the browser pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns the instrument set. Register one per process.
type Collector struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec

	plansTotal   *prometheus.CounterVec
	planDuration *prometheus.HistogramVec
	stepsTotal   *prometheus.CounterVec

	poolCapacity  prometheus.Gauge
	poolCreated   prometheus.Gauge
	poolAvailable prometheus.Gauge
	sessionsOpen  prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the instrument set with reg. A nil registerer
// uses the default Prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.commandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of command executions",
		},
		[]string{"command", "status"},
	)

	c.commandDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"command"},
	)

	c.fallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of fallback strategy applications",
		},
		[]string{"command", "strategy"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retried command attempts",
		},
		[]string{"command"},
	)

	c.plansTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Total number of executed plans",
		},
		[]string{"intent", "status"},
	)

	c.planDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Plan execution duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"intent"},
	)

	c.stepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_steps_total",
			Help:      "Total number of executed plan steps",
		},
		[]string{"status"},
	)

	c.poolCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_capacity",
		Help:      "Configured browser pool capacity",
	})
	c.poolCreated = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_browsers_created",
		Help:      "Number of live browsers owned by the pool",
	})
	c.poolAvailable = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_browsers_available",
		Help:      "Number of idle browsers in the pool",
	})
	c.sessionsOpen = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_open",
		Help:      "Number of open browser sessions",
	})

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordCommand records one finished command execution.
func (c *Collector) RecordCommand(command, status string, duration time.Duration) {
	c.commandsTotal.WithLabelValues(command, status).Inc()
	c.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordFallback records one fallback strategy application.
func (c *Collector) RecordFallback(command, strategy string) {
	c.fallbacksTotal.WithLabelValues(command, strategy).Inc()
}

// RecordRetry records one retried attempt.
func (c *Collector) RecordRetry(command string) {
	c.retriesTotal.WithLabelValues(command).Inc()
}

// RecordPlan records one finished plan.
func (c *Collector) RecordPlan(intentTag, status string, duration time.Duration) {
	c.plansTotal.WithLabelValues(intentTag, status).Inc()
	c.planDuration.WithLabelValues(intentTag).Observe(duration.Seconds())
}

// RecordStep records one finished plan step.
func (c *Collector) RecordStep(status string) {
	c.stepsTotal.WithLabelValues(status).Inc()
}

// SetPoolStats publishes the current pool gauges.
func (c *Collector) SetPoolStats(capacity, created, available int) {
	c.poolCapacity.Set(float64(capacity))
	c.poolCreated.Set(float64(created))
	c.poolAvailable.Set(float64(available))
}

// SetSessionsOpen publishes the open session count.
func (c *Collector) SetSessionsOpen(n int) {
	c.sessionsOpen.Set(float64(n))
}
