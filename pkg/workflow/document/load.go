package document

import (
	"fmt"
	"strings"

	"github.com/opsctl/opsctl/pkg/ctlerrors"
	"github.com/opsctl/opsctl/pkg/workflow/expr"
	"github.com/opsctl/opsctl/pkg/workflow/graph"
)

// rawWorkflow mirrors the YAML shape from spec.md §6, decoded loosely so
// validation can report every problem rather than failing on the first
// type mismatch.
type rawWorkflow struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Vars        map[string]any `yaml:"vars"`
	Parallel    *rawParallel   `yaml:"parallel"`
	Steps       []rawEntry     `yaml:"steps"`
}

type rawParallel struct {
	MaxConcurrent *int     `yaml:"max_concurrent"`
	RateLimit     *float64 `yaml:"rate_limit"`
	FailFast      *bool    `yaml:"fail_fast"`
}

type rawEntry struct {
	// Step fields, present when this entry is a step.
	Name           string         `yaml:"name"`
	Command        string         `yaml:"command"`
	Params         map[string]any `yaml:"params"`
	Condition      string         `yaml:"condition"`
	OnFailure      string         `yaml:"on_failure"`
	Retries        int            `yaml:"retries"`
	Timeout        *int           `yaml:"timeout"`
	DependsOn      []string       `yaml:"depends_on"`

	// Block field, present when this entry is a parallel block.
	Parallel *rawBlock `yaml:"parallel"`
}

type rawBlock struct {
	Name          string     `yaml:"name"`
	OnFailure     string     `yaml:"on_failure"`
	Timeout       *int       `yaml:"timeout"`
	MaxConcurrent *int       `yaml:"max_concurrent"`
	Steps         []rawEntry `yaml:"steps"`
}

// Load validates a loosely typed raw workflow document, already decoded
// from its serialization format, into a Workflow. Every rule in
// spec.md §4.1 is checked; failures are aggregated into a
// *ctlerrors.ValidationError rather than returned one at a time.
func Load(raw any) (*Workflow, error) {
	rw, err := coerceRaw(raw)
	if err != nil {
		return nil, &ctlerrors.ValidationError{Errors: []*ctlerrors.Error{
			ctlerrors.New(ctlerrors.CodeValidationFailed, "document", err.Error(), nil),
		}}
	}

	var verrs []*ctlerrors.Error
	fail := func(format string, args ...any) {
		verrs = append(verrs, ctlerrors.New(ctlerrors.CodeValidationFailed, "document", fmt.Sprintf(format, args...), nil))
	}

	// Rule 1: name is a non-empty identifier; steps is non-empty.
	if strings.TrimSpace(rw.Name) == "" {
		fail("workflow name must not be empty")
	}
	if len(rw.Steps) == 0 {
		fail("workflow must declare at least one step")
	}

	seenNames := map[string]bool{}
	var entries []StepOrBlock
	var dagSteps []Step
	hasDependsOn := false
	hasBlock := false

	var walkStep func(re rawEntry, insideBlock bool) *Step
	walkStep = func(re rawEntry, insideBlock bool) *Step {
		// Rule 2: unique name.
		if strings.TrimSpace(re.Name) == "" {
			fail("step name must not be empty")
		} else if seenNames[re.Name] {
			fail("duplicate step name %q", re.Name)
		}
		seenNames[re.Name] = true

		onFailure := OnFailureStep(re.OnFailure)
		if onFailure == "" {
			onFailure = OnFailureFail
		}
		// Rule 3: on_failure values are in the permitted set.
		switch onFailure {
		case OnFailureFail, OnFailureContinue, OnFailureRetry:
		default:
			fail("step %q: invalid on_failure %q", re.Name, re.OnFailure)
		}
		// Rule 4: retries >= 0.
		if re.Retries < 0 {
			fail("step %q: retries must be >= 0", re.Name)
		}
		// Rule 5: timeout_seconds > 0 when present.
		if re.Timeout != nil && *re.Timeout <= 0 {
			fail("step %q: timeout must be > 0", re.Name)
		}
		if insideBlock && len(re.DependsOn) > 0 {
			fail("step %q: depends_on is not meaningful inside a parallel block", re.Name)
		}
		// Rule 9: a templated expression must be syntactically
		// well-formed without requiring the runtime scope.
		if re.Condition != "" {
			if _, err := expr.CheckSyntax(re.Condition); err != nil {
				fail("step %q: condition is malformed: %v", re.Name, err)
			}
		}
		if re.Command != "" {
			if _, err := expr.CheckSyntax(re.Command); err != nil {
				fail("step %q: command is malformed: %v", re.Name, err)
			}
		}
		for k, v := range re.Params {
			if s, ok := v.(string); ok {
				if _, err := expr.CheckSyntax(s); err != nil {
					fail("step %q: param %q is malformed: %v", re.Name, k, err)
				}
			}
		}

		if len(re.DependsOn) > 0 {
			hasDependsOn = true
		}

		return &Step{
			Name:           re.Name,
			Command:        re.Command,
			Params:         re.Params,
			Condition:      re.Condition,
			OnFailure:      onFailure,
			Retries:        re.Retries,
			TimeoutSeconds: re.Timeout,
			DependsOn:      append([]string{}, re.DependsOn...),
		}
	}

	for _, re := range rw.Steps {
		if re.Parallel != nil {
			hasBlock = true
			// Rule 8: a ParallelBlock never contains another block —
			// any "parallel:" key inside a block step is rejected in the
			// child loop below.
			block := &ParallelBlock{
				Name:      re.Parallel.Name,
				MaxConcurrent: re.Parallel.MaxConcurrent,
				TimeoutSeconds: re.Parallel.Timeout,
			}
			onFailure := OnFailureBlock(re.Parallel.OnFailure)
			if onFailure == "" {
				onFailure = BlockFailAll
			}
			switch onFailure {
			case BlockFailAll, BlockContinue, BlockCompleteRunning:
			default:
				fail("block %q: invalid on_failure %q", re.Parallel.Name, re.Parallel.OnFailure)
			}
			block.OnFailure = onFailure
			if block.MaxConcurrent != nil && *block.MaxConcurrent <= 0 {
				fail("block %q: max_concurrent must be > 0", re.Parallel.Name)
			}
			if block.TimeoutSeconds != nil && *block.TimeoutSeconds <= 0 {
				fail("block %q: timeout must be > 0", re.Parallel.Name)
			}
			for _, childRaw := range re.Parallel.Steps {
				if childRaw.Parallel != nil {
					fail("block %q: nested parallel blocks are not allowed", re.Parallel.Name)
					continue
				}
				child := walkStep(childRaw, true)
				block.Steps = append(block.Steps, *child)
			}
			entries = append(entries, StepOrBlock{Block: block})
			continue
		}

		step := walkStep(re, false)
		entries = append(entries, StepOrBlock{Step: step})
		dagSteps = append(dagSteps, *step)
	}

	// Open Question resolution (see DESIGN.md): DAG mode requires the
	// top-level entry list to contain only Steps.
	if hasDependsOn && hasBlock {
		fail("workflow mixes depends_on and top-level parallel blocks; DAG-mode workflows must use only steps at the top level")
	}

	// Rules 6 & 7: depends_on resolves and is acyclic, checked via the
	// Dependency Graph component so both components agree on the DAG.
	if hasDependsOn && !hasBlock {
		nodes := make([]graph.Node, 0, len(dagSteps))
		for _, s := range dagSteps {
			nodes = append(nodes, graph.Node{Name: s.Name, DependsOn: s.DependsOn})
		}
		if _, gerrs := graph.Build(nodes); gerrs != nil {
			for _, ge := range gerrs {
				fail("%v", ge)
			}
		}
	}

	if len(verrs) > 0 {
		return nil, &ctlerrors.ValidationError{Errors: verrs}
	}

	cfg := DefaultBlockConfig()
	if rw.Parallel != nil {
		if rw.Parallel.MaxConcurrent != nil {
			cfg.MaxConcurrent = *rw.Parallel.MaxConcurrent
		}
		cfg.RateLimitPerSecond = rw.Parallel.RateLimit
		if rw.Parallel.FailFast != nil {
			cfg.FailFast = *rw.Parallel.FailFast
		}
	}

	return &Workflow{
		Name:           rw.Name,
		Description:    rw.Description,
		DefaultVars:    rw.Vars,
		Steps:          entries,
		ParallelConfig: cfg,
		DAGMode:        hasDependsOn,
	}, nil
}
