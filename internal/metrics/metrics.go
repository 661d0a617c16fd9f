// Package metrics exposes digest events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/digest"
)

// Collector counts runs, stage failures, provider calls and tokens.
type Collector struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	stop          func()
}

// New registers the digest metrics on a fresh registry and starts observing
// events. Call Close to stop observing.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "runs_total",
			Help:      "Finished summarization runs by variant and status.",
		}, []string{"variant", "status"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "stage_failures_total",
			Help:      "Failed stages by stage name and error type.",
		}, []string{"stage", "error_type"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "provider_calls_total",
			Help:      "Completion calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digest",
			Name:      "tokens_total",
			Help:      "Tokens reported by the provider.",
		}, []string{"kind"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "digest",
			Name:      "run_duration_seconds",
			Help:      "Run wall time by variant.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"variant"}),
	}
	c.registry.MustRegister(c.runs, c.stageFailures, c.providerCalls, c.tokens, c.runDuration)
	c.registry.MustRegister(collectors.NewGoCollector())

	observer := capitan.Observe(c.observe)
	c.stop = func() { observer.Close() }
	return c
}

func (c *Collector) observe(_ context.Context, e *capitan.Event) {
	switch e.Signal() {
	case digest.RunCompleted, digest.RunFailed:
		variant, _ := digest.VariantKey.From(e)
		status, _ := digest.StatusKey.From(e)
		c.runs.WithLabelValues(variant, status).Inc()
		if ms, ok := digest.DurationMsKey.From(e); ok {
			c.runDuration.WithLabelValues(variant).Observe(float64(ms) / 1000)
		}

	case digest.StageFailed:
		stage, _ := digest.StageKey.From(e)
		errorType, _ := digest.ErrorTypeKey.From(e)
		c.stageFailures.WithLabelValues(stage, errorType).Inc()

	case digest.ProviderCallCompleted:
		provider, _ := digest.ProviderKey.From(e)
		c.providerCalls.WithLabelValues(provider, "ok").Inc()
		if n, ok := digest.PromptTokensKey.From(e); ok {
			c.tokens.WithLabelValues("prompt").Add(float64(n))
		}
		if n, ok := digest.CompletionTokensKey.From(e); ok {
			c.tokens.WithLabelValues("completion").Add(float64(n))
		}

	case digest.ProviderCallFailed:
		provider, _ := digest.ProviderKey.From(e)
		c.providerCalls.WithLabelValues(provider, "error").Inc()
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Close stops observing events.
func (c *Collector) Close() {
	c.stop()
}
