package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Empty(t, g.nodes)
}

func TestAddNodeIdempotent(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("a")
	assert.Len(t, g.nodes, 1)
	g.AddNode("b")
	assert.Len(t, g.nodes, 2)
}

func TestAddEdgeAndQueries(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))

	deps, err := g.Dependencies("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deps)

	dependents, err := g.Dependents("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, dependents)

	assert.Equal(t, []string{"a"}, g.Roots())
}

func TestAddEdgeSelfReference(t *testing.T) {
	g := New()
	g.AddNode("a")
	err := g.AddEdge("a", "a")
	assert.Error(t, err)
}

func TestAddEdgeMissingNode(t *testing.T) {
	g := New()
	g.AddNode("a")
	assert.Error(t, g.AddEdge("a", "missing"))
	assert.Error(t, g.AddEdge("missing", "a"))
}

func TestDetectCyclesNone(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	assert.NoError(t, g.DetectCycles())
}

func TestDetectCyclesFound(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "a"))
	assert.Error(t, g.DetectCycles())
}

func TestRootsMultiple(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddEdge("a", "c"))
	assert.Equal(t, []string{"a", "b"}, g.Roots())
}
