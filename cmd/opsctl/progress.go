package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/opsctl/opsctl/pkg/workflow/result"
)

// cliObserver renders workflow progress to the terminal, adapted from the
// teacher's pkg/mcp/domain/progress.CLIReporter: a spinner in an
// interactive terminal, plain line-per-event logging under CI.
type cliObserver struct {
	isCI    bool
	spin    *spinner.Spinner
	mu      sync.Mutex
	started time.Time
}

func newCLIObserver() *cliObserver {
	o := &cliObserver{isCI: os.Getenv("CI") == "true"}
	if !o.isCI {
		o.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		o.spin.Color("cyan", "bold")
	}
	return o
}

func (o *cliObserver) WorkflowStarted(name string) {
	o.started = time.Now()
	if o.isCI {
		fmt.Printf("[start] workflow %s\n", name)
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spin.Suffix = fmt.Sprintf(" running %s", name)
	o.spin.Start()
}

func (o *cliObserver) StepStarted(name string) {
	if o.isCI {
		fmt.Printf("[step] %s started\n", name)
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spin.Suffix = fmt.Sprintf(" %s", name)
}

func (o *cliObserver) StepCompleted(r result.StepResult) {
	line := fmt.Sprintf("  %s %-28s %-10s %s", statusGlyph(r.Status), r.Name, r.Status, r.Duration().Round(time.Millisecond))
	o.printLine(line)
}

func (o *cliObserver) BlockStarted(name string) {
	o.printLine(color.CyanString("  » parallel block %s", name))
}

func (o *cliObserver) BlockCompleted(r result.BlockResult) {
	o.printLine(fmt.Sprintf("  %s block %-24s succeeded=%d failed=%d skipped=%d",
		statusGlyph(r.Status), r.Name, r.SucceededCount, r.FailedCount, r.SkippedCount))
}

func (o *cliObserver) WorkflowCompleted(r result.WorkflowResult) {
	o.mu.Lock()
	if o.spin != nil {
		o.spin.Stop()
	}
	o.mu.Unlock()
	fmt.Printf("%s workflow %s %s (%s)\n", statusGlyph(r.Status), r.Name, r.Status, time.Since(o.started).Round(time.Millisecond))
}

func (o *cliObserver) printLine(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.spin != nil {
		o.spin.Stop()
	}
	fmt.Println(line)
	if o.spin != nil {
		o.spin.Start()
	}
}

func statusGlyph(s result.Status) string {
	switch s {
	case result.StatusSucceeded:
		return color.GreenString("✓")
	case result.StatusSkipped:
		return color.YellowString("-")
	case result.StatusCancelled:
		return color.YellowString("x")
	default:
		return color.RedString("✗")
	}
}
