package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsctl/opsctl/pkg/workflow/result"
)

func TestRender_InterpolatesVars(t *testing.T) {
	scope := NewScope(map[string]any{"tag": "v1.2.3"})
	out, err := Render("docker build -t app:{{ vars.tag }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "docker build -t app:v1.2.3", out)
}

func TestRender_BareIdentifierShorthand(t *testing.T) {
	scope := NewScope(map[string]any{"tag": "v1"})
	out, err := Render("{{ tag }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "v1", out)
}

func TestRender_ResultField(t *testing.T) {
	scope := NewScope(nil)
	scope.SetResult("build", result.View{Stdout: "sha256:abc", ExitCode: 0, Status: result.StatusSucceeded})
	out, err := Render("{{ results['build'].stdout }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", out)
}

func TestRender_DefaultFilterFillsUndefined(t *testing.T) {
	scope := NewScope(nil)
	out, err := Render("{{ vars.missing | default('fallback') }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestRender_FilterChain(t *testing.T) {
	scope := NewScope(map[string]any{"name": "  BUILD  "})
	out, err := Render("{{ vars.name | trim | lower }}", scope)
	require.NoError(t, err)
	assert.Equal(t, "build", out)
}

func TestRenderBool_Truthiness(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "yes": true, "false": false, "0": false, "no": false, "": false}
	for lit, want := range cases {
		scope := NewScope(map[string]any{"v": lit})
		got, err := RenderBool("{{ vars.v }}", scope)
		require.NoError(t, err)
		assert.Equal(t, want, got, lit)
	}
}

func TestRenderBool_UndefinedIsFalse(t *testing.T) {
	scope := NewScope(nil)
	got, err := RenderBool("{{ vars.missing }}", scope)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRenderBool_UnrecognizedValueErrors(t *testing.T) {
	scope := NewScope(map[string]any{"v": "maybe"})
	_, err := RenderBool("{{ vars.v }}", scope)
	assert.Error(t, err)
}

func TestCheckSyntax_RejectsUnknownFilter(t *testing.T) {
	_, err := CheckSyntax("{{ vars.x | reverse }}")
	assert.Error(t, err)
}

func TestCheckSyntax_RejectsUnterminatedBlock(t *testing.T) {
	_, err := CheckSyntax("{{ vars.x")
	assert.Error(t, err)
}

func TestSnapshot_IsolatesSiblingResults(t *testing.T) {
	scope := NewScope(nil)
	scope.SetResult("a", result.View{Stdout: "first"})
	snap := scope.Snapshot()
	scope.SetResult("b", result.View{Stdout: "second"})

	_, ok := snap.lookupResult("b")
	assert.False(t, ok)
	v, ok := snap.lookupResult("a")
	assert.True(t, ok)
	assert.Equal(t, "first", v.Stdout)
}
