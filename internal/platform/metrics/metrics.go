// Package metrics exposes application counters to Prometheus.
//
// A Recorder counts escalations and cache lookups directly, and observes the
// application's CloudEvents to count routing outcomes, dispatch failures and
// boot step durations.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/baseapp"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "baseapp"

// ObserverID identifies the recorder among application observers.
const ObserverID = "metrics"

// Recorder holds the application's collectors.
type Recorder struct {
	registry *prometheus.Registry

	escalations    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	routes         *prometheus.CounterVec
	dispatchFailed *prometheus.CounterVec
	bootSteps      *prometheus.HistogramVec
}

// New creates a recorder on its own registry. With withRuntime the Go and
// process collectors are registered too.
func New(namespace string, withRuntime bool) (*Recorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Errors that reached the top-level handler.",
		}, []string{"env", "kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache reads by service and result.",
		}, []string{"service", "result"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Requests by matched route; unmatched requests use route=\"_notfound\".",
		}, []string{"route"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Failed dispatches, split by HMVC (internal) or HTTP requests.",
		}, []string{"internal"}),
		bootSteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boot_step_seconds",
			Help:      "Duration of each registrar boot step.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"step"}),
	}
	cs := []prometheus.Collector{r.escalations, r.cacheLookups, r.routes, r.dispatchFailed, r.bootSteps}
	if withRuntime {
		cs = append(cs, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return r, nil
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Escalated counts one escalation.
func (r *Recorder) Escalated(env, kind string) {
	r.escalations.WithLabelValues(env, kind).Inc()
}

// CacheLookup counts one cache read.
func (r *Recorder) CacheLookup(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(service, result).Inc()
}

// ObserverID implements baseapp.Observer.
func (r *Recorder) ObserverID() string { return ObserverID }

// EventTypes lists the events OnEvent understands.
func EventTypes() []string {
	return []string{
		baseapp.EventTypeRouteMatched,
		baseapp.EventTypeRouteNotFound,
		baseapp.EventTypeDispatchFailed,
		baseapp.EventTypeBootStep,
	}
}

// OnEvent implements baseapp.Observer.
func (r *Recorder) OnEvent(_ context.Context, event cloudevents.Event) error {
	data := map[string]any{}
	if len(event.Data()) > 0 {
		if err := event.DataAs(&data); err != nil {
			return fmt.Errorf("metrics: decode %s: %w", event.Type(), err)
		}
	}
	switch event.Type() {
	case baseapp.EventTypeRouteMatched:
		route, _ := data["route"].(string)
		if route == "" {
			route = "_unnamed"
		}
		r.routes.WithLabelValues(route).Inc()
	case baseapp.EventTypeRouteNotFound:
		r.routes.WithLabelValues("_notfound").Inc()
	case baseapp.EventTypeDispatchFailed:
		internal, _ := data["internal"].(bool)
		r.dispatchFailed.WithLabelValues(strconv.FormatBool(internal)).Inc()
	case baseapp.EventTypeBootStep:
		step, _ := data["step"].(string)
		elapsed, _ := data["elapsed"].(string)
		d, err := time.ParseDuration(elapsed)
		if err != nil {
			return fmt.Errorf("metrics: boot step %q elapsed %q: %w", step, elapsed, err)
		}
		r.bootSteps.WithLabelValues(step).Observe(d.Seconds())
	}
	return nil
}

// Nop discards everything. It stands in when metrics are disabled.
type Nop struct{}

func (Nop) Escalated(string, string) {}

func (Nop) CacheLookup(string, bool) {}
