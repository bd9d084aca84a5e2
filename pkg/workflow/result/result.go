// Package result defines the step and block result records produced by
// the workflow engine (spec.md §3 "StepResult"/"BlockResult").
package result

import "time"

// Status is the terminal state of a step or block.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// StepResult is emitted exactly once per step per engine run; retries are
// folded into Attempts.
type StepResult struct {
	Name         string
	Status       Status
	StartedAt    time.Time
	CompletedAt  time.Time
	Stdout       string
	Stderr       string
	ExitCode     int
	ErrorMessage string
	Attempts     int
	DryRun       bool

	// ContinueOnFailure is set when the step's on_failure=continue
	// absorbed a dispatch failure; it tells the executor to proceed
	// rather than treat the step as fatal to its block/sequence.
	ContinueOnFailure bool
}

// Duration reports the wall-clock time the step occupied.
func (r StepResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// View is the subset of a StepResult exposed to template rendering
// (spec.md §3 "Scope"): stdout, stderr, exit_code, status.
type View struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Status   Status
}

// ViewOf projects a StepResult down to its template-visible fields.
func ViewOf(r StepResult) View {
	return View{Stdout: r.Stdout, Stderr: r.Stderr, ExitCode: r.ExitCode, Status: r.Status}
}

// BlockResult wraps the per-child StepResults of a ParallelBlock, in
// declared order regardless of completion order.
type BlockResult struct {
	Name           string
	StepResults    []StepResult
	SucceededCount int
	FailedCount    int
	SkippedCount   int
	Status         Status
}

// Aggregate recomputes counts and the overall status from StepResults.
// Status is succeeded iff every non-skipped child succeeded. Cancelled
// children (unstarted siblings of a fail_all/complete_running failure)
// count toward FailedCount, same as an outright failure.
func (b *BlockResult) Aggregate() {
	b.SucceededCount, b.FailedCount, b.SkippedCount = 0, 0, 0
	allGood := true
	for _, sr := range b.StepResults {
		switch sr.Status {
		case StatusSucceeded:
			b.SucceededCount++
		case StatusSkipped:
			b.SkippedCount++
		default:
			b.FailedCount++
			allGood = false
		}
	}
	if allGood {
		b.Status = StatusSucceeded
	} else if b.Status != StatusTimedOut {
		b.Status = StatusFailed
	}
}

// Entry is one top-level workflow entry: either a Step result or a Block
// result, never both.
type Entry struct {
	Step  *StepResult
	Block *BlockResult
}

// Name returns the entry's identity for diagnostics.
func (e Entry) Name() string {
	if e.Step != nil {
		return e.Step.Name
	}
	if e.Block != nil {
		return e.Block.Name
	}
	return ""
}

// Status returns the entry's terminal status.
func (e Entry) Status() Status {
	if e.Step != nil {
		return e.Step.Status
	}
	if e.Block != nil {
		return e.Block.Status
	}
	return StatusFailed
}

// WorkflowResult is the facade's aggregated, ordered result.
type WorkflowResult struct {
	Name    string
	Status  Status
	Entries []Entry
}
