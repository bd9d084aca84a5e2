// Package document implements the Document Model (spec.md §4.1): parsing
// a loosely typed workflow input into a validated, immutable Workflow.
package document

// OnFailureStep is the failure policy attached to a single Step.
type OnFailureStep string

const (
	OnFailureFail     OnFailureStep = "fail"
	OnFailureContinue OnFailureStep = "continue"
	OnFailureRetry    OnFailureStep = "retry"
)

// OnFailureBlock is the failure policy attached to a ParallelBlock.
type OnFailureBlock string

const (
	BlockFailAll         OnFailureBlock = "fail_all"
	BlockContinue        OnFailureBlock = "continue"
	BlockCompleteRunning OnFailureBlock = "complete_running"
)

// Step is a single dispatchable unit: an internal command path or, when
// Command starts with "!", a shell invocation.
type Step struct {
	Name           string
	Command        string
	Params         map[string]any
	Condition      string
	OnFailure      OnFailureStep
	Retries        int
	TimeoutSeconds *int
	DependsOn      []string
}

// ParallelBlock is an explicit concurrent group of Steps. Nested blocks are
// disallowed by validation.
type ParallelBlock struct {
	Name           string
	Steps          []Step
	OnFailure      OnFailureBlock
	TimeoutSeconds *int
	MaxConcurrent  *int
}

// StepOrBlock is a tagged variant holding exactly one of Step, Block.
type StepOrBlock struct {
	Step  *Step
	Block *ParallelBlock
}

// IsStep reports whether this entry is a Step rather than a ParallelBlock.
func (s StepOrBlock) IsStep() bool { return s.Step != nil }

// Name returns the entry's identity for diagnostics and result attribution.
func (s StepOrBlock) Name() string {
	if s.Step != nil {
		return s.Step.Name
	}
	if s.Block != nil {
		return s.Block.Name
	}
	return ""
}

// BlockConfig is the engine-wide default applied to any DAG layer derived
// from top-level depends_on edges.
type BlockConfig struct {
	MaxConcurrent      int
	RateLimitPerSecond *float64
	FailFast           bool
}

// DefaultBlockConfig matches spec.md §3: max_concurrent defaults to 10,
// rate_limit_per_second is unset, fail_fast defaults to true.
func DefaultBlockConfig() BlockConfig {
	return BlockConfig{MaxConcurrent: 10, FailFast: true}
}

// Workflow is the validated, immutable document. Construct only via Load.
type Workflow struct {
	Name           string
	Description    string
	DefaultVars    map[string]any
	Steps          []StepOrBlock
	ParallelConfig BlockConfig

	// DAGMode is true when any Step declares depends_on. In DAG mode the
	// top-level Steps list is guaranteed to contain only Step entries
	// (see Open Question resolution in DESIGN.md); otherwise it may mix
	// Step and ParallelBlock entries and is driven by the Sequential
	// Executor.
	DAGMode bool
}

// FlatSteps returns every top-level Step. Valid only for DAG-mode
// workflows, where Steps is guaranteed to hold only Step entries.
func (w *Workflow) FlatSteps() []Step {
	steps := make([]Step, 0, len(w.Steps))
	for _, sb := range w.Steps {
		if sb.Step != nil {
			steps = append(steps, *sb.Step)
		}
	}
	return steps
}
