package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets covers sub-millisecond guard decisions up to slow downstream calls.
var DefaultBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Prometheus is a Sink backed by a Prometheus registry.
type Prometheus struct {
	namespace  string
	buckets    []float64
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	log        *slog.Logger

	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// PrometheusOption configures a Prometheus sink.
type PrometheusOption func(*Prometheus)

// WithNamespace prefixes every metric name with the given namespace.
func WithNamespace(ns string) PrometheusOption {
	return func(p *Prometheus) { p.namespace = ns }
}

// WithRegistry uses the given registry for both registration and gathering.
// Without it a fresh registry with Go runtime and process collectors is created.
func WithRegistry(reg *prometheus.Registry) PrometheusOption {
	return func(p *Prometheus) {
		if reg != nil {
			p.registerer = reg
			p.gatherer = reg
		}
	}
}

// WithBuckets overrides the histogram buckets used for every histogram.
func WithBuckets(buckets ...float64) PrometheusOption {
	return func(p *Prometheus) {
		if len(buckets) > 0 {
			p.buckets = buckets
		}
	}
}

// WithLogger sets the logger used to report dropped observations.
func WithLogger(l *slog.Logger) PrometheusOption {
	return func(p *Prometheus) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPrometheus creates a Prometheus sink.
func NewPrometheus(opts ...PrometheusOption) *Prometheus {
	p := &Prometheus{
		buckets:    DefaultBuckets,
		log:        slog.New(slog.DiscardHandler),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.registerer == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		p.registerer = reg
		p.gatherer = reg
	}

	return p
}

// IncrementCounter adds one to the named counter.
func (p *Prometheus) IncrementCounter(name string, labels Labels) {
	vec, err := p.counterVec(name, labelNames(labels))
	if err != nil {
		p.drop(name, err)
		return
	}
	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		p.drop(name, err)
		return
	}
	c.Inc()
}

// RecordHistogram observes value on the named histogram.
func (p *Prometheus) RecordHistogram(name string, value float64, labels Labels) {
	vec, err := p.histogramVec(name, labelNames(labels))
	if err != nil {
		p.drop(name, err)
		return
	}
	h, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		p.drop(name, err)
		return
	}
	h.Observe(value)
}

// Handler exposes the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Registerer returns the underlying registerer.
func (p *Prometheus) Registerer() prometheus.Registerer {
	return p.registerer
}

func (p *Prometheus) counterVec(name string, keys []string) (*prometheus.CounterVec, error) {
	p.mu.RLock()
	vec, ok := p.counters[name]
	p.mu.RUnlock()
	if ok {
		return vec, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if vec, ok := p.counters[name]; ok {
		return vec, nil
	}

	vec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      helpText(name),
	}, keys)

	if err := p.registerer.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, errors.Join(ErrRegistration, err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("%w: %s registered with a different type", ErrRegistration, name)
		}
		vec = existing
	}

	p.counters[name] = vec
	return vec, nil
}

func (p *Prometheus) histogramVec(name string, keys []string) (*prometheus.HistogramVec, error) {
	p.mu.RLock()
	vec, ok := p.histograms[name]
	p.mu.RUnlock()
	if ok {
		return vec, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if vec, ok := p.histograms[name]; ok {
		return vec, nil
	}

	vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      helpText(name),
		Buckets:   p.buckets,
	}, keys)

	if err := p.registerer.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, errors.Join(ErrRegistration, err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("%w: %s registered with a different type", ErrRegistration, name)
		}
		vec = existing
	}

	p.histograms[name] = vec
	return vec, nil
}

func (p *Prometheus) drop(name string, err error) {
	p.log.Warn("metric observation dropped",
		slog.String("metric", name),
		slog.Any("error", err),
	)
}

func labelNames(labels Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func helpText(name string) string {
	return "Control plane metric " + name
}
