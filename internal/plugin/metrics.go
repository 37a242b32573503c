package plugin

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are cumulative call statistics for one plugin.
type Metrics struct {
	TotalMicros int64     `json:"total_us" yaml:"total_us"`
	Calls       uint64    `json:"calls" yaml:"calls"`
	Errors      uint64    `json:"errors" yaml:"errors"`
	LastCall    time.Time `json:"last_call" yaml:"last_call"`
}

// AverageExecutionTimeMs returns the mean call time in milliseconds.
func (m Metrics) AverageExecutionTimeMs() float64 {
	if m.Calls == 0 {
		return 0
	}
	return float64(m.TotalMicros) / (float64(m.Calls) * 1000)
}

// metricsStore keeps Metrics by plugin name, independent of registry
// entries, so numbers survive unload and reload.
type metricsStore struct {
	mu   sync.Mutex
	data map[string]*Metrics
	prom *promMetrics
}

func newMetricsStore(reg prometheus.Registerer) *metricsStore {
	return &metricsStore{
		data: make(map[string]*Metrics),
		prom: newPromMetrics(reg),
	}
}

func (s *metricsStore) record(plugin, op string, d time.Duration, failed bool, at time.Time) {
	s.mu.Lock()
	m, ok := s.data[plugin]
	if !ok {
		m = &Metrics{}
		s.data[plugin] = m
	}
	m.TotalMicros += d.Microseconds()
	m.Calls++
	if failed {
		m.Errors++
	}
	m.LastCall = at
	s.mu.Unlock()

	s.prom.calls.WithLabelValues(plugin, op).Inc()
	s.prom.duration.WithLabelValues(plugin, op).Observe(d.Seconds())
	if failed {
		s.prom.errors.WithLabelValues(plugin, op).Inc()
	}
}

func (s *metricsStore) get(plugin string) Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.data[plugin]; ok {
		return *m
	}
	return Metrics{}
}

func (s *metricsStore) reset(plugin string) {
	s.mu.Lock()
	delete(s.data, plugin)
	s.mu.Unlock()
}

// promMetrics mirrors the store into Prometheus.
type promMetrics struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	plugins  *prometheus.GaugeVec
}

// newPromMetrics creates the collectors and registers them with reg when
// it is non-nil.
func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	p := &promMetrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "versedeck_plugin_calls_total",
				Help: "Total number of calls into plugins",
			},
			[]string{"plugin", "op"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "versedeck_plugin_call_errors_total",
				Help: "Total number of failed plugin calls",
			},
			[]string{"plugin", "op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "versedeck_plugin_call_duration_seconds",
				Help:    "Plugin call duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"plugin", "op"},
		),
		plugins: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "versedeck_plugins",
				Help: "Number of known plugins by lifecycle state",
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(p.calls, p.errors, p.duration, p.plugins)
	}
	return p
}
