// Package runner implements the Step Runner (spec.md §4.4): dispatches one
// rendered step to either the command dispatcher or the shell runner,
// enforcing per-step timeout and retry. The Step Runner reads the Scope
// only to render the step's condition, command and params; it never writes
// it, and callers record the returned StepResult into it.
package runner

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsctl/opsctl/pkg/workflow/expr"
	"github.com/opsctl/opsctl/pkg/workflow/document"
	"github.com/opsctl/opsctl/pkg/workflow/result"
	"github.com/opsctl/opsctl/pkg/workflow/retry"
)

// Dispatcher routes an internal command path to a concrete handler. Any
// type with this method set satisfies it, including
// pkg/workflow/commands.Registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, commandPath string, params map[string]any, deadline time.Time) (exitCode int, stdout, stderr string, err error)
}

// ShellRunner executes a shell command line. Any type with this method set
// satisfies it, including pkg/workflow/shellrunner.Default.
type ShellRunner interface {
	Run(ctx context.Context, commandLine string, env map[string]string, deadline time.Time) (exitCode int, stdout, stderr string, err error)
}

// Runner executes a single Step to a terminal StepResult.
type Runner struct {
	Dispatcher Dispatcher
	Shell      ShellRunner
	Logger     zerolog.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// New builds a Runner with sane defaults.
func New(d Dispatcher, s ShellRunner, logger zerolog.Logger) *Runner {
	return &Runner{Dispatcher: d, Shell: s, Logger: logger, Now: time.Now}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes step against scope, honoring dryRun and the effective
// deadline (the earlier of step.timeout_seconds and the caller-supplied
// deadline).
func (r *Runner) Run(ctx context.Context, step document.Step, scope *expr.Scope, dryRun bool, callerDeadline time.Time) result.StepResult {
	started := r.now()
	res := result.StepResult{Name: step.Name, StartedAt: started, DryRun: dryRun, Attempts: 0}

	// Step 1: condition.
	if step.Condition != "" {
		ok, err := expr.RenderBool(step.Condition, scope)
		if err != nil {
			return r.finish(res, result.StatusFailed, "", "", 0, "condition render failed: "+err.Error())
		}
		if !ok {
			return r.finish(res, result.StatusSkipped, "", "", 0, "")
		}
	}

	// Step 2: render command and params.
	command, err := expr.Render(step.Command, scope)
	if err != nil {
		return r.finish(res, result.StatusFailed, "", "", 0, "command render failed: "+err.Error())
	}
	renderedParams := make(map[string]any, len(step.Params))
	for k, v := range step.Params {
		if s, ok := v.(string); ok {
			rv, err := expr.Render(s, scope)
			if err != nil {
				return r.finish(res, result.StatusFailed, "", "", 0, "param "+k+" render failed: "+err.Error())
			}
			renderedParams[k] = rv
			continue
		}
		renderedParams[k] = v
	}

	// Effective deadline: the earlier of step.timeout_seconds and the
	// caller-supplied deadline (spec.md §5 "Timeouts").
	deadline := callerDeadline
	if step.TimeoutSeconds != nil {
		stepDeadline := started.Add(time.Duration(*step.TimeoutSeconds) * time.Second)
		if deadline.IsZero() || stepDeadline.Before(deadline) {
			deadline = stepDeadline
		}
	}

	if dryRun {
		return r.finish(res, result.StatusSucceeded, "dry-run: would dispatch "+describe(command), "", 0, "")
	}

	isShell := strings.HasPrefix(command, "!")
	maxAttempts := 1
	if step.OnFailure == document.OnFailureRetry && step.Retries > 0 {
		maxAttempts = 1 + step.Retries
	}

	var exitCode int
	var stdout, stderr string
	var dispatchErr error
	var timedOut bool

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return r.finish(res, result.StatusCancelled, stdout, stderr, exitCode, "cancelled before dispatch")
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return r.finish(res, result.StatusCancelled, stdout, stderr, exitCode, "cancelled during retry backoff")
			case <-time.After(retry.Delay(attempt - 1)):
			}
		}

		res.Attempts = attempt + 1
		if isShell {
			exitCode, stdout, stderr, dispatchErr = r.Shell.Run(ctx, strings.TrimPrefix(command, "!"), nil, deadline)
		} else {
			exitCode, stdout, stderr, dispatchErr = r.Dispatcher.Dispatch(ctx, command, renderedParams, deadline)
		}

		timedOut = ctxDeadlineExceeded(ctx, deadline, dispatchErr)
		if timedOut {
			break
		}
		if dispatchErr == nil && exitCode == 0 {
			return r.finish(res, result.StatusSucceeded, stdout, stderr, exitCode, "")
		}
		// Dispatch failed this attempt; retry mode keeps looping.
		if step.OnFailure != document.OnFailureRetry {
			break
		}
	}

	if timedOut {
		return r.finish(res, result.StatusTimedOut, stdout, stderr, exitCode, errText(dispatchErr, "step exceeded its deadline"))
	}

	msg := errText(dispatchErr, "command exited with non-zero status")
	switch step.OnFailure {
	case document.OnFailureContinue:
		sr := r.finish(res, result.StatusFailed, stdout, stderr, exitCode, msg)
		sr.ContinueOnFailure = true
		return sr
	default: // fail, or retry exhausted
		return r.finish(res, result.StatusFailed, stdout, stderr, exitCode, msg)
	}
}

func (r *Runner) finish(res result.StepResult, status result.Status, stdout, stderr string, exitCode int, errMsg string) result.StepResult {
	res.Status = status
	res.Stdout = stdout
	res.Stderr = stderr
	res.ExitCode = exitCode
	res.ErrorMessage = errMsg
	res.CompletedAt = r.now()
	if res.Attempts == 0 {
		res.Attempts = 1
	}
	return res
}

func ctxDeadlineExceeded(ctx context.Context, deadline time.Time, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	if !deadline.IsZero() && !deadline.After(time.Now()) {
		return true
	}
	return err == context.DeadlineExceeded
}

func errText(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}

func describe(command string) string {
	if strings.HasPrefix(command, "!") {
		return "shell: " + strings.TrimPrefix(command, "!")
	}
	return "command: " + command
}
