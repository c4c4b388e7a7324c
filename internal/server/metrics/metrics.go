// Package metrics exposes Prometheus collectors for the event bus, the
// read-model and the command facade on a private registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/server/readmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command results used as the "result" label.
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid_format"
	ResultDuplicate = "duplicate"
	ResultNotFound  = "not_found"
	ResultError     = "error"
)

// Metrics implements eventbus.Recorder.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	eventsPublished *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandLatency  *prometheus.HistogramVec
}

// New creates the collectors under namespace (default "userledger").
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "userledger"
	}

	m := &Metrics{registry: prometheus.NewRegistry(), namespace: namespace}

	m.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events published on the bus by category",
		},
		[]string{"category"},
	)

	m.handlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_failures_total",
			Help:      "Handler errors and panics swallowed by the bus",
		},
		[]string{"category"},
	)

	m.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled by the user service",
		},
		[]string{"command", "result"},
	)

	m.commandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time taken to validate, persist and apply a command",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"command"},
	)

	m.registry.MustRegister(
		m.eventsPublished,
		m.handlerFailures,
		m.commands,
		m.commandLatency,
		collectors.NewGoCollector(),
	)

	return m
}

func (m *Metrics) EventPublished(category string) {
	m.eventsPublished.WithLabelValues(category).Inc()
}

func (m *Metrics) HandlerFailed(category string) {
	m.handlerFailures.WithLabelValues(category).Inc()
}

// RecordCommand counts one command outcome and its latency.
func (m *Metrics) RecordCommand(command string, duration time.Duration, err error) {
	m.commands.WithLabelValues(command, Result(err)).Inc()
	m.commandLatency.WithLabelValues(command).Observe(duration.Seconds())
}

// Result maps an error to its "result" label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, common.ErrorInvalidFormat):
		return ResultInvalid
	case errors.Is(err, common.ErrorDuplicate):
		return ResultDuplicate
	case errors.Is(err, common.ErrorNotFound):
		return ResultNotFound
	default:
		return ResultError
	}
}

// StatsSource is implemented by *readmodel.Cache.
type StatsSource interface {
	Stats() readmodel.Stats
}

// WatchCache exports the read-model counters, sampled at scrape time.
func (m *Metrics) WatchCache(cache StatsSource) {
	const subsystem = "readmodel"
	sample := func(pick func(readmodel.Stats) int64) func() float64 {
		return func() float64 { return float64(pick(cache.Stats())) }
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: subsystem, Name: "records",
			Help: "Users held by the read-model",
		}, sample(func(s readmodel.Stats) int64 { return int64(s.Size) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: subsystem, Name: "hits_total",
			Help: "Lookups by id answered from the read-model",
		}, sample(func(s readmodel.Stats) int64 { return s.Hits })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: subsystem, Name: "misses_total",
			Help: "Lookups by id for unknown users",
		}, sample(func(s readmodel.Stats) int64 { return s.Misses })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: subsystem, Name: "events_applied_total",
			Help: "Events applied to the read-model",
		}, sample(func(s readmodel.Stats) int64 { return s.Applied })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: subsystem, Name: "events_ignored_total",
			Help: "Duplicate, stale or unknown-user events skipped by the read-model",
		}, sample(func(s readmodel.Stats) int64 { return s.Ignored })),
	)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
