// Package metrics implements an optional Prometheus-backed Observer
// (spec.md §9 "metrics are an optional observer, never required for
// correctness"), grounded in the teacher's client_golang usage patterns
// elsewhere in the corpus (counter/histogram vectors registered once,
// read concurrently).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsctl/opsctl/pkg/workflow/result"
)

// Observer implements engine.Observer, recording step/block/workflow
// counts and durations. It is safe to register against the default
// registry or a dedicated one passed to New.
type Observer struct {
	stepsTotal      *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	blocksTotal     *prometheus.CounterVec
	workflowsTotal  *prometheus.CounterVec
	workflowSeconds prometheus.Histogram

	startedAt map[string]time.Time
}

// New registers the engine's metrics on reg and returns the observer.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsctl_steps_total",
			Help: "Steps dispatched, labeled by terminal status.",
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsctl_step_duration_seconds",
			Help:    "Step wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		blocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsctl_blocks_total",
			Help: "Parallel blocks completed, labeled by terminal status.",
		}, []string{"status"}),
		workflowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsctl_workflows_total",
			Help: "Workflow runs completed, labeled by terminal status.",
		}, []string{"status"}),
		workflowSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsctl_workflow_duration_seconds",
			Help:    "Whole-workflow wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}),
		startedAt: make(map[string]time.Time),
	}
	reg.MustRegister(o.stepsTotal, o.stepDuration, o.blocksTotal, o.workflowsTotal, o.workflowSeconds)
	return o
}

func (o *Observer) WorkflowStarted(name string) {
	o.startedAt[name] = time.Now()
}

func (o *Observer) StepStarted(string) {}

func (o *Observer) StepCompleted(r result.StepResult) {
	status := string(r.Status)
	o.stepsTotal.WithLabelValues(status).Inc()
	o.stepDuration.WithLabelValues(status).Observe(r.Duration().Seconds())
}

func (o *Observer) BlockStarted(string) {}

func (o *Observer) BlockCompleted(r result.BlockResult) {
	o.blocksTotal.WithLabelValues(string(r.Status)).Inc()
}

func (o *Observer) WorkflowCompleted(r result.WorkflowResult) {
	o.workflowsTotal.WithLabelValues(string(r.Status)).Inc()
	if start, ok := o.startedAt[r.Name]; ok {
		o.workflowSeconds.Observe(time.Since(start).Seconds())
		delete(o.startedAt, r.Name)
	}
}
