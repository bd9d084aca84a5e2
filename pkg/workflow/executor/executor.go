// Package executor implements the Parallel and Sequential Executors
// (spec.md §4.5, §4.6): bounded-concurrency fan-out over a ParallelBlock,
// and the DAG/Sequential drivers that walk a Workflow's top-level entries.
//
// The bounded worker pool is a simplified descendant of the teacher's
// pkg/common/execution.OptimizedExecutor.WorkerPool: that type is a
// long-lived channel-of-channels pool sized for a persistent tool-serving
// process. A ParallelBlock's fan-out is one-shot and block-scoped, so this
// package collapses it to the more idiomatic buffered-channel semaphore
// plus sync.WaitGroup (see DESIGN.md).
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/opsctl/opsctl/pkg/workflow/document"
	"github.com/opsctl/opsctl/pkg/workflow/expr"
	"github.com/opsctl/opsctl/pkg/workflow/graph"
	"github.com/opsctl/opsctl/pkg/workflow/ratelimit"
	"github.com/opsctl/opsctl/pkg/workflow/result"
)

// StepRunner is the narrow surface the executor needs from
// pkg/workflow/runner.Runner.
type StepRunner interface {
	Run(ctx context.Context, step document.Step, scope *expr.Scope, dryRun bool, deadline time.Time) result.StepResult
}

// Executor drives a Workflow's top-level entries against a StepRunner.
type Executor struct {
	Runner StepRunner
}

// New builds an Executor.
func New(r StepRunner) *Executor {
	return &Executor{Runner: r}
}

// RunBlock executes every step in block with bounded concurrency, honoring
// block.OnFailure (spec.md §4.5):
//
//   - fail_all: on the first step failure, cancel all still-running
//     siblings and mark every not-yet-started sibling cancelled instead of
//     dispatching it.
//   - continue: every step runs to completion regardless of siblings'
//     outcome.
//   - complete_running: stop launching new steps on first failure (marking
//     them cancelled), but let already-started siblings finish.
//
// A block-level timeout, if set, bounds the whole call and takes priority
// over a simultaneous step failure when both are in play (spec.md's Open
// Question on timeout-vs-failure precedence, resolved in DESIGN.md).
func (e *Executor) RunBlock(ctx context.Context, block document.ParallelBlock, scope *expr.Scope, cfg document.BlockConfig, dryRun bool, callerDeadline time.Time) result.BlockResult {
	res := result.BlockResult{Name: block.Name, StepResults: make([]result.StepResult, len(block.Steps))}

	blockCtx := ctx
	deadline := callerDeadline
	if block.TimeoutSeconds != nil {
		bd := time.Now().Add(time.Duration(*block.TimeoutSeconds) * time.Second)
		if deadline.IsZero() || bd.Before(deadline) {
			deadline = bd
		}
	}
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		blockCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	maxConcurrent := cfg.MaxConcurrent
	if block.MaxConcurrent != nil {
		maxConcurrent = *block.MaxConcurrent
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerSecond != nil {
		limiter = ratelimit.New(*cfg.RateLimitPerSecond)
	}

	// blockScope is a snapshot taken at block entry: siblings started
	// concurrently never observe each other's results (spec.md §3).
	blockScope := scope.Snapshot()

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed bool
	runCtx, cancelRun := context.WithCancel(blockCtx)
	defer cancelRun()

	for i, step := range block.Steps {
		mu.Lock()
		stop := failed && block.OnFailure != document.BlockContinue
		mu.Unlock()
		if stop {
			res.StepResults[i] = result.StepResult{Name: step.Name, Status: result.StatusCancelled}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, step document.Step) {
			defer wg.Done()
			defer func() { <-sem }()

			// Authoritative re-check: a sibling may have failed between
			// this step being queued and its semaphore slot becoming
			// available, a window the pre-loop "stop" check can race
			// past under fail_all/complete_running.
			if block.OnFailure != document.BlockContinue {
				mu.Lock()
				alreadyFailed := failed
				mu.Unlock()
				if alreadyFailed {
					res.StepResults[i] = result.StepResult{Name: step.Name, Status: result.StatusCancelled}
					return
				}
			}

			if limiter != nil {
				if err := limiter.Acquire(runCtx, deadline); err != nil {
					res.StepResults[i] = result.StepResult{Name: step.Name, Status: result.StatusTimedOut, ErrorMessage: err.Error()}
					return
				}
			}

			sr := e.Runner.Run(runCtx, step, blockScope, dryRun, deadline)
			res.StepResults[i] = sr

			if sr.Status != result.StatusSucceeded && sr.Status != result.StatusSkipped && !sr.ContinueOnFailure {
				mu.Lock()
				failed = true
				mu.Unlock()
				if block.OnFailure == document.BlockFailAll {
					cancelRun()
				}
			}
		}(i, step)
	}
	wg.Wait()

	for _, sr := range res.StepResults {
		if sr.Name != "" {
			scope.SetResult(sr.Name, result.ViewOf(sr))
		}
	}

	res.Aggregate()
	if blockCtx.Err() == context.DeadlineExceeded {
		res.Status = result.StatusTimedOut
	}
	return res
}

// RunDAG executes a DAG-mode workflow's flat step list layer by layer
// (spec.md §4.3): each layer's steps run concurrently (bounded by cfg),
// and no step starts before every predecessor has reached a terminal
// state. fail_fast (the block-config default) stops launching new layers
// once any step in a prior layer has failed; otherwise the walk continues
// to completion and downstream steps whose predecessors failed are marked
// cancelled.
func (e *Executor) RunDAG(ctx context.Context, g *graph.Graph, steps []document.Step, scope *expr.Scope, cfg document.BlockConfig, dryRun bool, deadline time.Time) []result.StepResult {
	byName := make(map[string]document.Step, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
	}
	results := make(map[string]result.StepResult, len(steps))

	layers := graph.Layers(g)
	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerSecond != nil {
		limiter = ratelimit.New(*cfg.RateLimitPerSecond)
	}

	aborted := false
	for _, layer := range layers {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 1
		}
		sem := make(chan struct{}, maxConcurrent)
		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, name := range layer {
			step := byName[name]

			skip := aborted
			if !skip {
				for _, dep := range g.Predecessors(name) {
					if dr, ok := results[dep]; ok && dr.Status != result.StatusSucceeded && dr.Status != result.StatusSkipped {
						skip = true
						break
					}
				}
			}
			if skip {
				mu.Lock()
				results[name] = result.StepResult{Name: name, Status: result.StatusCancelled}
				mu.Unlock()
				continue
			}

			sem <- struct{}{}
			wg.Add(1)
			go func(step document.Step) {
				defer wg.Done()
				defer func() { <-sem }()

				if limiter != nil {
					if err := limiter.Acquire(ctx, deadline); err != nil {
						mu.Lock()
						results[step.Name] = result.StepResult{Name: step.Name, Status: result.StatusTimedOut, ErrorMessage: err.Error()}
						mu.Unlock()
						return
					}
				}

				sr := e.Runner.Run(ctx, step, scope, dryRun, deadline)
				scope.SetResult(step.Name, result.ViewOf(sr))
				mu.Lock()
				results[step.Name] = sr
				mu.Unlock()
			}(step)
		}
		wg.Wait()

		if cfg.FailFast {
			for _, name := range layer {
				if r := results[name]; r.Status != result.StatusSucceeded && r.Status != result.StatusSkipped {
					aborted = true
				}
			}
		}
	}

	ordered := make([]result.StepResult, 0, len(steps))
	for _, s := range steps {
		ordered = append(ordered, results[s.Name])
	}
	return ordered
}

// RunSequential drives a non-DAG workflow's top-level entries in document
// order, dispatching each ParallelBlock through RunBlock and each bare
// Step through the runner directly.
func (e *Executor) RunSequential(ctx context.Context, entries []document.StepOrBlock, scope *expr.Scope, cfg document.BlockConfig, dryRun bool, deadline time.Time) []result.Entry {
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
			sr := e.Runner.Run(ctx, *entry.Step, scope, dryRun, deadline)
			scope.SetResult(sr.Name, result.ViewOf(sr))
			out = append(out, result.Entry{Step: &sr})
			if sr.Status != result.StatusSucceeded && sr.Status != result.StatusSkipped && !sr.ContinueOnFailure {
				aborted = true
			}
			continue
		}

		br := e.RunBlock(ctx, *entry.Block, scope, cfg, dryRun, deadline)
		out = append(out, result.Entry{Block: &br})
		if br.Status != result.StatusSucceeded && entry.Block.OnFailure == document.BlockFailAll {
			aborted = true
		}
	}
	return out
}
