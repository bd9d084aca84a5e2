package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsctl/opsctl/pkg/workflow/commands"
	"github.com/opsctl/opsctl/pkg/workflow/document"
	"github.com/opsctl/opsctl/pkg/workflow/executor"
	"github.com/opsctl/opsctl/pkg/workflow/expr"
	"github.com/opsctl/opsctl/pkg/workflow/graph"
	"github.com/opsctl/opsctl/pkg/workflow/result"
	"github.com/opsctl/opsctl/pkg/workflow/runner"
	"github.com/opsctl/opsctl/pkg/workflow/shellrunner"
	"github.com/opsctl/opsctl/pkg/workflow/telemetry"
)

// Engine wires the Document Model, Dependency Graph, Step Runner, and
// executors together into a single run, per spec.md §4.8:
//
//  1. load and validate the document
//  2. merge the caller's vars onto the document's default vars
//  3. initialize the Scope
//  4. pick the DAG path or the Sequential path
//  5. aggregate the result
type Engine struct {
	Dispatcher commands.Dispatcher
	Shell      shellrunner.ShellRunner
	Logger     zerolog.Logger
	Observer   Observer

	// Tracer, when set, wraps every step dispatch in an OpenTelemetry
	// span (pkg/workflow/telemetry). Left nil, tracing is skipped
	// entirely rather than routed through a no-op tracer, since most
	// runs have no collector to send spans to.
	Tracer trace.Tracer
}

// New builds an Engine with a registry of builtin commands already
// wired onto the default shell runner.
func New(logger zerolog.Logger) *Engine {
	shell := shellrunner.Default{}
	registry := commands.NewRegistry()
	commands.RegisterBuiltins(registry, shell)
	return &Engine{Dispatcher: registry, Shell: shell, Logger: logger, Observer: NopObserver{}}
}

// RunOptions configures a single Run call.
type RunOptions struct {
	Vars     map[string]any
	DryRun   bool
	Deadline time.Time
}

// Run loads raw (YAML bytes, a string, or a pre-decoded value), merges
// opts.Vars onto its default vars, and executes it to a terminal
// WorkflowResult. The returned error is non-nil only for document load
// failures (spec.md §4.1); execution failures are reported inside the
// WorkflowResult instead.
func (e *Engine) Run(ctx context.Context, raw any, opts RunOptions) (result.WorkflowResult, error) {
	wf, err := document.Load(raw)
	if err != nil {
		return result.WorkflowResult{}, err
	}

	vars := make(map[string]any, len(wf.DefaultVars)+len(opts.Vars))
	for k, v := range wf.DefaultVars {
		vars[k] = v
	}
	for k, v := range opts.Vars {
		vars[k] = v
	}
	scope := expr.NewScope(vars)

	observer := e.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	observer.WorkflowStarted(wf.Name)

	sr := runner.New(e.Dispatcher, e.Shell, e.Logger)
	var stepRunner executor.StepRunner = sr
	if e.Tracer != nil {
		stepRunner = telemetry.Wrap(stepRunner, e.Tracer)
	}
	obsRunner := &observingRunner{inner: stepRunner, observer: observer}
	ex := executor.New(obsRunner)

	wr := result.WorkflowResult{Name: wf.Name}

	if wf.DAGMode {
		steps := wf.FlatSteps()
		nodes := make([]graph.Node, 0, len(steps))
		for _, s := range steps {
			nodes = append(nodes, graph.Node{Name: s.Name, DependsOn: s.DependsOn})
		}
		// Load already validated the graph; Build cannot fail here.
		g, _ := graph.Build(nodes)

		stepResults := ex.RunDAG(ctx, g, steps, scope, wf.ParallelConfig, opts.DryRun, opts.Deadline)
		for i := range stepResults {
			sr := stepResults[i]
			wr.Entries = append(wr.Entries, result.Entry{Step: &sr})
		}
	} else {
		entries := observingBlocks(ex, observer)
		wr.Entries = entries.RunSequential(ctx, wf.Steps, scope, wf.ParallelConfig, opts.DryRun, opts.Deadline)
	}

	wr.Status = overallStatus(wr.Entries)
	observer.WorkflowCompleted(wr)
	return wr, nil
}

// overallStatus is binary: succeeded iff every non-skipped entry
// succeeded, otherwise failed (spec.md §4.8 step 5). A timed-out entry
// still reports timed_out in wr.Entries; at the workflow level it folds
// into failed like any other non-success.
func overallStatus(entries []result.Entry) result.Status {
	status := result.StatusSucceeded
	for _, e := range entries {
		st := e.Status()
		if st == result.StatusSkipped || st == result.StatusSucceeded {
			continue
		}
		status = result.StatusFailed
	}
	return status
}

// observingRunner wraps a runner.Runner to emit StepStarted/StepCompleted
// around each dispatch, without the Step Runner itself depending on the
// Observer type.
type observingRunner struct {
	inner    executor.StepRunner
	observer Observer
}

func (o *observingRunner) Run(ctx context.Context, step document.Step, scope *expr.Scope, dryRun bool, deadline time.Time) result.StepResult {
	o.observer.StepStarted(step.Name)
	sr := o.inner.Run(ctx, step, scope, dryRun, deadline)
	o.observer.StepCompleted(sr)
	return sr
}

// observingBlocks adapts *executor.Executor so block-level events fire
// around RunBlock, reusing RunSequential's and RunBlock's existing logic.
type blockObserver struct {
	*executor.Executor
	observer Observer
}

func observingBlocks(ex *executor.Executor, observer Observer) *blockObserver {
	return &blockObserver{Executor: ex, observer: observer}
}

func (b *blockObserver) RunSequential(ctx context.Context, entries []document.StepOrBlock, scope *expr.Scope, cfg document.BlockConfig, dryRun bool, deadline time.Time) []result.Entry {
	out := make([]result.Entry, 0, len(entries))
	aborted := false
	for _, entry := range entries {
		if aborted {
			if entry.IsStep() {
				out = append(out, result.Entry{Step: &result.StepResult{Name: entry.Name(), Status: result.StatusSkipped}})
			} else {
				out = append(out, result.Entry{Block: &result.BlockResult{Name: entry.Name(), Status: result.StatusSkipped}})
			}
			continue
		}

		if entry.IsStep() {
			entries := b.Executor.RunSequential(ctx, []document.StepOrBlock{entry}, scope, cfg, dryRun, deadline)
			out = append(out, entries...)
			sr := entries[0].Step
			if st := sr.Status; st != result.StatusSucceeded && st != result.StatusSkipped && !sr.ContinueOnFailure {
				aborted = true
			}
			continue
		}

		b.observer.BlockStarted(entry.Block.Name)
		br := b.Executor.RunBlock(ctx, *entry.Block, scope, cfg, dryRun, deadline)
		b.observer.BlockCompleted(br)
		out = append(out, result.Entry{Block: &br})
		if br.Status != result.StatusSucceeded && entry.Block.OnFailure == document.BlockFailAll {
			aborted = true
		}
	}
	return out
}
