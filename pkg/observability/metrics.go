package observability

import (
	"net/http"
	"strconv"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stagehand"

// Metrics holds the Prometheus collectors for machines and the driver.
type Metrics struct {
	registry *prometheus.Registry

	stateEnters  *prometheus.CounterVec
	stateExits   *prometheus.CounterVec
	frames       prometheus.Counter
	fixedSteps   prometheus.Counter
	droppedSteps prometheus.Counter
	reaped       prometheus.Counter
	machines     prometheus.Gauge
	frameWork    prometheus.Histogram
}

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithRegistry registers the collectors in reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) MetricsOption {
	return func(m *Metrics) {
		m.registry = reg
	}
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	m := &Metrics{}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.stateEnters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_enters_total",
			Help:      "Total number of states entered, by state type.",
		},
		[]string{"state"},
	)
	m.stateExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_exits_total",
			Help:      "Total number of states exited, by state type and whether the machine was torn down.",
		},
		[]string{"state", "terminal"},
	)
	m.frames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "frames_total",
		Help:      "Total number of frames stepped.",
	})
	m.fixedSteps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "fixed_steps_total",
		Help:      "Total number of fixed update passes.",
	})
	m.droppedSteps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "dropped_fixed_steps_total",
		Help:      "Fixed steps discarded because a frame hit the catch-up cap.",
	})
	m.reaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "reaped_machines_total",
		Help:      "Machines torn down because their host object was destroyed.",
	})
	m.machines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "machines",
		Help:      "Machines updated in the last frame.",
	})
	m.frameWork = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "frame_work_seconds",
		Help:      "Wall-clock time spent inside a frame.",
		Buckets:   []float64{.0001, .0005, .001, .002, .005, .01, .02, .05},
	})

	m.registry.MustRegister(
		m.stateEnters, m.stateExits,
		m.frames, m.fixedSteps, m.droppedSteps, m.reaped, m.machines, m.frameWork,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns machine lifecycle hooks feeding the state counters.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(e *domain.TransitionEvent) {
			m.stateEnters.WithLabelValues(e.To).Inc()
		},
		OnStateExit: func(e *domain.TransitionEvent) {
			m.stateExits.WithLabelValues(e.From, strconv.FormatBool(e.Terminal())).Inc()
		},
	}
}

// DriverHooks returns driver hooks feeding the loop metrics.
func (m *Metrics) DriverHooks() driver.Hooks {
	return driver.Hooks{
		OnFrame: func(f driver.Frame) {
			m.frames.Inc()
			m.fixedSteps.Add(float64(f.FixedSteps))
			m.droppedSteps.Add(float64(f.Dropped))
			m.reaped.Add(float64(f.Reaped))
			m.machines.Set(float64(f.Machines))
			m.frameWork.Observe(f.Work.Seconds())
		},
	}
}
