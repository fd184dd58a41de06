package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/aerotrim/internal/fdm"
)

// Recorder receives the outcome of one trim, linearization or stage.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, d time.Duration)
}

// Collector exports engine and solver counters to Prometheus. It satisfies
// both fdm.Instrumentation and Recorder.
type Collector struct {
	registry *prometheus.Registry

	settles    *prometheus.HistogramVec
	steps      prometheus.Counter
	errors     *prometheus.CounterVec
	operations *prometheus.HistogramVec
	trimCost   prometheus.Gauge
	trimEvals  prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		settles: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aerotrim",
			Name:      "settle_duration_seconds",
			Help:      "Duration of initial-condition settles.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"result"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aerotrim",
			Name:      "steps_total",
			Help:      "Engine time steps taken.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerotrim",
			Name:      "engine_errors_total",
			Help:      "Engine errors by kind.",
		}, []string{"kind"}),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aerotrim",
			Name:      "operation_duration_seconds",
			Help:      "Duration of trim, linearize and stage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		trimCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aerotrim",
			Name:      "trim_cost",
			Help:      "Cost at the most recent trim solution.",
		}),
		trimEvals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aerotrim",
			Name:      "trim_evaluations_total",
			Help:      "Functional evaluations spent in trim.",
		}),
	}
	c.registry.MustRegister(c.settles, c.steps, c.errors, c.operations, c.trimCost, c.trimEvals)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveSettle(d time.Duration, err error) {
	c.settles.WithLabelValues(result(err == nil)).Observe(d.Seconds())
}

func (c *Collector) ObserveStep() { c.steps.Inc() }

func (c *Collector) ObserveError(k fdm.Kind) {
	c.errors.WithLabelValues(k.String()).Inc()
}

func (c *Collector) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	if operation == "" {
		return
	}
	c.operations.WithLabelValues(operation, result(success)).Observe(d.Seconds())
}

// ObserveTrim records the final cost and evaluation count of a trim.
func (c *Collector) ObserveTrim(cost float64, evaluations int) {
	c.trimCost.Set(cost)
	c.trimEvals.Add(float64(evaluations))
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
