package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsctl/opsctl/pkg/logger"
	"github.com/opsctl/opsctl/pkg/workflow/document"
	"github.com/opsctl/opsctl/pkg/workflow/expr"
	"github.com/opsctl/opsctl/pkg/workflow/result"
)

type fakeDispatcher struct {
	calls int
	fn    func(calls int) (int, string, string, error)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, commandPath string, params map[string]any, deadline time.Time) (int, string, string, error) {
	f.calls++
	return f.fn(f.calls)
}

type fakeShell struct {
	exitCode int
	stdout   string
	err      error
}

func (f *fakeShell) Run(ctx context.Context, commandLine string, env map[string]string, deadline time.Time) (int, string, string, error) {
	return f.exitCode, f.stdout, "", f.err
}

func newTestRunner(d Dispatcher, s ShellRunner) *Runner {
	return New(d, s, logger.Nop())
}

func TestRun_SkipsOnFalseCondition(t *testing.T) {
	r := newTestRunner(&fakeDispatcher{}, &fakeShell{})
	scope := expr.NewScope(map[string]any{"go": false})
	step := document.Step{Name: "A", Command: "docker build", Condition: "{{ vars.go }}"}

	sr := r.Run(context.Background(), step, scope, false, time.Time{})
	assert.Equal(t, result.StatusSkipped, sr.Status)
}

func TestRun_DryRunNeverDispatches(t *testing.T) {
	d := &fakeDispatcher{fn: func(int) (int, string, string, error) { t.Fatal("should not dispatch"); return 0, "", "", nil }}
	r := newTestRunner(d, &fakeShell{})
	step := document.Step{Name: "A", Command: "docker build"}

	sr := r.Run(context.Background(), step, expr.NewScope(nil), true, time.Time{})
	assert.Equal(t, result.StatusSucceeded, sr.Status)
	assert.True(t, sr.DryRun)
	assert.Equal(t, 0, d.calls)
}

func TestRun_ShellPrefixRoutesToShellRunner(t *testing.T) {
	shell := &fakeShell{exitCode: 0, stdout: "hi"}
	r := newTestRunner(&fakeDispatcher{}, shell)
	step := document.Step{Name: "A", Command: "!echo hi"}

	sr := r.Run(context.Background(), step, expr.NewScope(nil), false, time.Time{})
	require.Equal(t, result.StatusSucceeded, sr.Status)
	assert.Equal(t, "hi", sr.Stdout)
}

func TestRun_RetriesUntilSuccess(t *testing.T) {
	d := &fakeDispatcher{fn: func(calls int) (int, string, string, error) {
		if calls < 3 {
			return 1, "", "boom", errors.New("boom")
		}
		return 0, "ok", "", nil
	}}
	r := newTestRunner(d, &fakeShell{})
	r.Now = func() time.Time { return time.Unix(0, 0) }
	step := document.Step{Name: "A", Command: "docker build", OnFailure: document.OnFailureRetry, Retries: 3}

	sr := r.Run(context.Background(), step, expr.NewScope(nil), false, time.Time{})
	assert.Equal(t, result.StatusSucceeded, sr.Status)
	assert.Equal(t, 3, sr.Attempts)
}

func TestRun_ContinueOnFailureMarksFlag(t *testing.T) {
	d := &fakeDispatcher{fn: func(int) (int, string, string, error) { return 1, "", "nope", nil }}
	r := newTestRunner(d, &fakeShell{})
	step := document.Step{Name: "A", Command: "docker build", OnFailure: document.OnFailureContinue}

	sr := r.Run(context.Background(), step, expr.NewScope(nil), false, time.Time{})
	assert.Equal(t, result.StatusFailed, sr.Status)
	assert.True(t, sr.ContinueOnFailure)
}

func TestRun_PastDeadlineIsTimedOut(t *testing.T) {
	d := &fakeDispatcher{fn: func(int) (int, string, string, error) { return 1, "", "", nil }}
	r := newTestRunner(d, &fakeShell{})
	step := document.Step{Name: "A", Command: "docker build"}

	sr := r.Run(context.Background(), step, expr.NewScope(nil), false, time.Now().Add(-time.Second))
	assert.Equal(t, result.StatusTimedOut, sr.Status)
}
