// Package telemetry wraps the Step Runner with an OpenTelemetry span per
// step, adapted from the teacher's pkg/mcp/infrastructure/middleware/trace
// package (a tracer decorator around a domain interface rather than a
// tracer threaded through every call site). Entirely optional: when the
// engine has no tracer set, steps are not wrapped at all.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsctl/opsctl/pkg/workflow/document"
	"github.com/opsctl/opsctl/pkg/workflow/expr"
	"github.com/opsctl/opsctl/pkg/workflow/result"
)

// StepRunner is the narrow surface telemetry wraps, matching
// pkg/workflow/executor.StepRunner.
type StepRunner interface {
	Run(ctx context.Context, step document.Step, scope *expr.Scope, dryRun bool, deadline time.Time) result.StepResult
}

// tracedRunner decorates a StepRunner with a span per step.
type tracedRunner struct {
	next   StepRunner
	tracer trace.Tracer
}

// Wrap returns a StepRunner that starts a span named "step.<name>" around
// each dispatch, recording its status, exit code and attempt count as span
// attributes.
func Wrap(next StepRunner, tracer trace.Tracer) StepRunner {
	return &tracedRunner{next: next, tracer: tracer}
}

func (t *tracedRunner) Run(ctx context.Context, step document.Step, scope *expr.Scope, dryRun bool, deadline time.Time) result.StepResult {
	ctx, span := t.tracer.Start(ctx, "step."+step.Name,
		trace.WithAttributes(
			attribute.String("step.command", step.Command),
			attribute.Bool("step.dry_run", dryRun),
		),
	)
	defer span.End()

	sr := t.next.Run(ctx, step, scope, dryRun, deadline)

	span.SetAttributes(
		attribute.String("step.status", string(sr.Status)),
		attribute.Int("step.exit_code", sr.ExitCode),
		attribute.Int("step.attempts", sr.Attempts),
	)
	if sr.Status == result.StatusFailed || sr.Status == result.StatusTimedOut {
		span.SetStatus(codes.Error, sr.ErrorMessage)
	}
	return sr
}
