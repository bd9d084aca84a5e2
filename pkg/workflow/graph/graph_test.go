package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_DetectsSelfDependency(t *testing.T) {
	_, errs := Build([]Node{{Name: "A", DependsOn: []string{"A"}}})
	require.Len(t, errs, 1)
	var target *UnknownDependencyError
	require.ErrorAs(t, errs[0], &target)
	assert.True(t, target.SelfDepend)
}

func TestBuild_DetectsUnknownDependency(t *testing.T) {
	_, errs := Build([]Node{{Name: "A", DependsOn: []string{"ghost"}}})
	require.Len(t, errs, 1)
	var target *UnknownDependencyError
	require.ErrorAs(t, errs[0], &target)
	assert.Equal(t, "ghost", target.Unknown)
}

func TestBuild_DetectsCycle(t *testing.T) {
	_, errs := Build([]Node{
		{Name: "A", DependsOn: []string{"C"}},
		{Name: "B", DependsOn: []string{"A"}},
		{Name: "C", DependsOn: []string{"B"}},
	})
	require.Len(t, errs, 1)
	var target *CycleError
	require.ErrorAs(t, errs[0], &target)
}

func TestLayers_GroupsByDependencyDepth(t *testing.T) {
	g, errs := Build([]Node{
		{Name: "A"},
		{Name: "B", DependsOn: []string{"A"}},
		{Name: "C", DependsOn: []string{"A"}},
		{Name: "D", DependsOn: []string{"B", "C"}},
	})
	require.Nil(t, errs)

	layers := Layers(g)
	require.Len(t, layers, 3)
	assert.Equal(t, []string{"A"}, layers[0])
	assert.ElementsMatch(t, []string{"B", "C"}, layers[1])
	assert.Equal(t, []string{"D"}, layers[2])
}

func TestReady_ReturnsOnlyUnblockedNodes(t *testing.T) {
	g, errs := Build([]Node{
		{Name: "A"},
		{Name: "B", DependsOn: []string{"A"}},
	})
	require.Nil(t, errs)

	assert.Equal(t, []string{"A"}, Ready(g, map[string]bool{}))
	assert.Equal(t, []string{"B"}, Ready(g, map[string]bool{"A": true}))
}

func TestBuild_AcceptsDiamondDependency(t *testing.T) {
	g, errs := Build([]Node{
		{Name: "A"},
		{Name: "B", DependsOn: []string{"A"}},
		{Name: "C", DependsOn: []string{"A"}},
		{Name: "D", DependsOn: []string{"B", "C"}},
	})
	require.Nil(t, errs)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, g.Names())
	assert.ElementsMatch(t, []string{"A"}, g.Predecessors("B"))
}
