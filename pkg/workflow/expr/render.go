package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// errUndefined marks an expression whose value is undefined.
var errUndefined = errors.New("undefined value")

// findBlocks finds {{ ... }} spans without support for nesting, matching
// the "lightweight mustache-style grammar" spec.md §4.2 calls for.
func findBlocks(s string) ([][2]int, error) {
	var blocks [][2]int
	i := 0
	for {
		start := strings.Index(s[i:], "{{")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(s[start+2:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated %q starting at %d", "{{", start)
		}
		end = start + 2 + end
		blocks = append(blocks, [2]int{start, end + 2})
		i = end + 2
	}
	return blocks, nil
}

// CheckSyntax validates that every {{ ... }} block in s parses and uses
// only known filters, without requiring a runtime Scope. This backs
// spec.md §4.1 rule 9 (document validation of templated expressions).
func CheckSyntax(s string) (bool, error) {
	blocks, err := findBlocks(s)
	if err != nil {
		return false, err
	}
	for _, b := range blocks {
		inner := s[b[0]+2 : b[1]-2]
		t, err := parseTemplate(inner)
		if err != nil {
			return false, fmt.Errorf("in %q: %w", inner, err)
		}
		if err := validateFilters(t); err != nil {
			return false, fmt.Errorf("in %q: %w", inner, err)
		}
	}
	return true, nil
}

// RenderError is returned by Render/RenderBool when an expression cannot
// be evaluated against the given scope.
type RenderError struct {
	Template string
	Reason   string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error in %q: %s", e.Template, e.Reason)
}

// Render interpolates every {{ expr | filter... }} block in tmpl against
// scope and returns the resulting string. Render is pure: it reads scope
// and produces a string, never mutating state or performing I/O (the
// strftime filter reads the wall clock, which spec.md explicitly allows).
func Render(tmpl string, scope *Scope) (string, error) {
	return render(tmpl, scope, false)
}

// render does the work of Render; with undefinedAsText set, a block whose
// value is undefined renders as the text "undefined" instead of failing.
func render(tmpl string, scope *Scope, undefinedAsText bool) (string, error) {
	blocks, err := findBlocks(tmpl)
	if err != nil {
		return "", &RenderError{Template: tmpl, Reason: err.Error()}
	}
	if len(blocks) == 0 {
		return tmpl, nil
	}

	var out strings.Builder
	cursor := 0
	for _, b := range blocks {
		out.WriteString(tmpl[cursor:b[0]])
		inner := tmpl[b[0]+2 : b[1]-2]
		val, err := evalInner(inner, scope)
		if err != nil && undefinedAsText && errors.Is(err, errUndefined) {
			val, err = "undefined", nil
		}
		if err != nil {
			return "", &RenderError{Template: tmpl, Reason: err.Error()}
		}
		out.WriteString(val)
		cursor = b[1]
	}
	out.WriteString(tmpl[cursor:])
	return out.String(), nil
}

// RenderBool renders tmpl then applies the truthiness rule from
// spec.md §4.2: the rendered string, lower-cased and trimmed, is true for
// {true, 1, yes}, false for {false, 0, no, "", undefined}; anything else
// is a RenderError.
func RenderBool(tmpl string, scope *Scope) (bool, error) {
	rendered, err := render(tmpl, scope, true)
	if err != nil {
		return false, err
	}
	norm := strings.ToLower(strings.TrimSpace(rendered))
	switch norm {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "", "undefined":
		return false, nil
	default:
		return false, &RenderError{Template: tmpl, Reason: fmt.Sprintf("value %q is not a recognized boolean", rendered)}
	}
}

func evalInner(inner string, scope *Scope) (string, error) {
	t, err := parseTemplate(inner)
	if err != nil {
		return "", fmt.Errorf("in %q: %w", inner, err)
	}
	if err := validateFilters(t); err != nil {
		return "", fmt.Errorf("in %q: %w", inner, err)
	}

	val, found, err := evalExpr(t.expr, scope)
	if err != nil {
		return "", err
	}

	for _, f := range t.filters {
		val, found, err = applyFilter(f, val, found)
		if err != nil {
			return "", err
		}
	}

	if !found {
		return "", fmt.Errorf("%w for %q", errUndefined, inner)
	}
	return stringify(val), nil
}

func evalExpr(e exprNode, scope *Scope) (any, bool, error) {
	if e.isLiteral {
		return e.literal, true, nil
	}
	if len(e.path) == 0 {
		return nil, false, fmt.Errorf("empty path")
	}

	root := e.path[0].name
	switch root {
	case "vars":
		if len(e.path) == 1 {
			return nil, false, fmt.Errorf("vars requires a field, e.g. vars.name")
		}
		v, ok := scope.lookupVar(e.path[1].name)
		if !ok {
			return nil, false, nil
		}
		return resolveRest(v, e.path[2:])
	case "results":
		if len(e.path) == 1 {
			return nil, false, fmt.Errorf("results requires a step name, e.g. results['A'].stdout")
		}
		v, ok := scope.lookupResult(e.path[1].name)
		if !ok {
			return nil, false, fmt.Errorf("no result recorded for step %q", e.path[1].name)
		}
		m := map[string]any{
			"stdout":    v.Stdout,
			"stderr":    v.Stderr,
			"exit_code": float64(v.ExitCode),
			"status":    string(v.Status),
		}
		return resolveRest(m, e.path[2:])
	default:
		// Bare identifiers resolve against vars directly, so
		// `{{ name | default('x') }}` works without the `vars.`
		// prefix when the whole path is just one segment.
		v, ok := scope.lookupVar(root)
		if !ok {
			return nil, false, nil
		}
		return resolveRest(v, e.path[1:])
	}
}

func resolveRest(v any, rest []segment) (any, bool, error) {
	cur := v
	for _, seg := range rest {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("cannot index into non-mapping value with %q", seg.name)
		}
		cur, ok = m[seg.name]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func applyFilter(f filterCall, val any, found bool) (any, bool, error) {
	switch f.name {
	case "default":
		if !found || stringify(val) == "" {
			return f.arg, true, nil
		}
		return val, found, nil
	case "trim":
		if !found {
			return val, found, nil
		}
		return strings.TrimSpace(stringify(val)), true, nil
	case "lower":
		if !found {
			return val, found, nil
		}
		return strings.ToLower(stringify(val)), true, nil
	case "upper":
		if !found {
			return val, found, nil
		}
		return strings.ToUpper(stringify(val)), true, nil
	case "strftime":
		if !found {
			return val, found, nil
		}
		return time.Now().Format(toGoLayout(stringify(val))), true, nil
	default:
		return nil, false, fmt.Errorf("unknown filter %q", f.name)
	}
}

// toGoLayout translates a small set of strftime-style directives into a Go
// reference-time layout. Only the directives a workflow author is likely
// to need for timestamps are supported; anything else passes through
// unchanged.
func toGoLayout(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
		"%Z", "MST",
	)
	return replacer.Replace(format)
}
