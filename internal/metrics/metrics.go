// Package metrics exposes controller activity as Prometheus metrics.
// Manager implements the controller's Output and Observer interfaces so it
// can be teed alongside the hardware adapters.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/pelican/internal/logic"
)

const namespace = "pelican"

var phases = []logic.Phase{
	logic.PhaseRed,
	logic.PhaseGreen,
	logic.PhaseYellow,
	logic.PhaseCrossingA,
	logic.PhaseCrossingB,
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool

	// RuntimeCollectors adds the Go and process collectors to the registry.
	RuntimeCollectors    bool
	PhaseDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		RuntimeCollectors:    true,
		PhaseDurationBuckets: []float64{1, 3, 5, 10, 15, 20, 30, 60},
	}
}

// Manager owns the registry and every controller metric.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool
	now      func() time.Time

	transitions   *prometheus.CounterVec
	phase         *prometheus.GaugeVec
	phaseDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	crossings     *prometheus.CounterVec
	pulses        *prometheus.CounterVec
	countdown     prometheus.Gauge
	mqttConnected prometheus.Gauge

	mu        sync.Mutex
	current   logic.Phase
	enteredAt time.Time
}

// NewManager creates a metrics manager. A disabled manager accepts every
// call and records nothing.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()
	if cfg.RuntimeCollectors {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Manager{
		registry: registry,
		enabled:  true,
		now:      time.Now,
	}
	m.initPhaseMetrics(cfg)
	m.initRequestMetrics()
	return m
}

// NoOpManager returns a manager that records nothing.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) initPhaseMetrics(cfg Config) {
	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Total number of phase transitions, by phase entered",
		},
		[]string{"phase"},
	)
	m.phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "1 for the active phase, 0 otherwise",
		},
		[]string{"phase"},
	)
	m.phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Time spent in a phase before leaving it",
			Buckets:   cfg.PhaseDurationBuckets,
		},
		[]string{"phase"},
	)
	m.countdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "countdown_seconds",
		Help:      "Seconds remaining on the crossing countdown",
	})
	m.pulses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buzzer_pulses_total",
			Help:      "Total number of buzzer pulses, by channel",
		},
		[]string{"channel"},
	)

	m.registry.MustRegister(m.transitions, m.phase, m.phaseDuration, m.countdown, m.pulses)

	for _, p := range phases {
		m.phase.WithLabelValues(p.String()).Set(0)
	}
}

func (m *Manager) initRequestMetrics() {
	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Button edges by side and arbiter outcome",
		},
		[]string{"side", "outcome"},
	)
	m.dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_dropped_total",
			Help:      "Requests discarded because they arrived during a crossing cycle",
		},
		[]string{"side"},
	)
	m.crossings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossings_total",
			Help:      "Completed crossing cycles, by side",
		},
		[]string{"side"},
	)
	m.mqttConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mqtt_connected",
		Help:      "1 while the MQTT broker connection is up",
	})

	m.registry.MustRegister(m.requests, m.dropped, m.crossings, m.mqttConnected)
}

// SetSignal records a phase transition.
func (m *Manager) SetSignal(phase logic.Phase) {
	if !m.enabled {
		return
	}
	now := m.now()
	m.mu.Lock()
	prev, entered := m.current, m.enteredAt
	m.current, m.enteredAt = phase, now
	m.mu.Unlock()

	if !entered.IsZero() {
		m.phaseDuration.WithLabelValues(prev.String()).Observe(now.Sub(entered).Seconds())
		m.phase.WithLabelValues(prev.String()).Set(0)
	}
	m.phase.WithLabelValues(phase.String()).Set(1)
	m.transitions.WithLabelValues(phase.String()).Inc()
	m.countdown.Set(0)
}

// SetBuzzer counts pulses.
func (m *Manager) SetBuzzer(ch logic.Channel, on bool) {
	if !m.enabled || !on {
		return
	}
	m.pulses.WithLabelValues(ch.String()).Inc()
}

// RenderStatus tracks the countdown.
func (m *Manager) RenderStatus(text string, countdown int) {
	if !m.enabled {
		return
	}
	m.countdown.Set(float64(countdown))
}

// CycleStarted is a no-op; cycles are counted when they finish.
func (m *Manager) CycleStarted(id string, side logic.Side) {}

// CycleFinished counts a completed crossing.
func (m *Manager) CycleFinished(id string, side logic.Side) {
	if !m.enabled {
		return
	}
	m.crossings.WithLabelValues(side.String()).Inc()
}

// RequestDropped counts a request discarded at the end of a cycle.
func (m *Manager) RequestDropped(side logic.Side) {
	if !m.enabled {
		return
	}
	m.dropped.WithLabelValues(side.String()).Inc()
}

// RecordRequest counts a button edge by outcome.
func (m *Manager) RecordRequest(side logic.Side, outcome logic.Outcome) {
	if !m.enabled {
		return
	}
	m.requests.WithLabelValues(side.String(), string(outcome)).Inc()
}

// SetMQTTConnected records the broker connection state.
func (m *Manager) SetMQTTConnected(connected bool) {
	if !m.enabled {
		return
	}
	if connected {
		m.mqttConnected.Set(1)
	} else {
		m.mqttConnected.Set(0)
	}
}
