package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addNodes is a helper that inserts no-op nodes with the given IDs.
func addNodes(t *testing.T, g *Graph, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, g.AddNode(&Node{ID: id}))
	}
}

func TestGraph_AddNode(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(&Node{ID: "a"}))
	assert.Equal(t, 1, g.Len())
	assert.NotNil(t, g.Node("a"))
	assert.Nil(t, g.Node("b"))
}

func TestGraph_AddNode_RejectsDuplicatesAndEmptyIDs(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(&Node{ID: "a"}))

	err := g.AddNode(&Node{ID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	require.Error(t, g.AddNode(&Node{}))
}

func TestGraph_AddEdge(t *testing.T) {
	g := New()
	addNodes(t, g, "a", "b", "c")

	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))

	deps, err := g.Dependencies("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deps)

	dependents, err := g.Dependents("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, dependents)
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	g := New()
	addNodes(t, g, "a")

	require.Error(t, g.AddEdge("a", "a"))
	require.Error(t, g.AddEdge("missing", "a"))
	require.Error(t, g.AddEdge("a", "missing"))
}

func TestGraph_NodeIDsAreSorted(t *testing.T) {
	g := New()
	addNodes(t, g, "c", "a", "b")
	assert.Equal(t, []string{"a", "b", "c"}, g.NodeIDs())
}

func TestGraph_Merge(t *testing.T) {
	g := New()
	addNodes(t, g, "a")

	other := New()
	addNodes(t, other, "b", "c")
	require.NoError(t, other.AddEdge("b", "c"))

	require.NoError(t, g.Merge(other))
	assert.Equal(t, []string{"a", "b", "c"}, g.NodeIDs())

	deps, err := g.Dependencies("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, deps)
}

func TestGraph_Merge_RejectsCollidingIDs(t *testing.T) {
	g := New()
	addNodes(t, g, "a")
	other := New()
	addNodes(t, other, "a")

	err := g.Merge(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	// The failed merge must not have moved anything.
	assert.Equal(t, 1, g.Len())
}

func TestGraph_DetectCycles(t *testing.T) {
	g := New()
	addNodes(t, g, "a", "b", "c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.DetectCycles())

	require.NoError(t, g.AddEdge("c", "a"))
	err := g.DetectCycles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}
