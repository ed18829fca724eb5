package dag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func lexical(a, b string) bool { return a < b }

func TestTopoSort_DependenciesComeFirst(t *testing.T) {
	g := New()
	for _, id := range []string{"follower1", "follower2", "leader"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("leader", "follower1"))
	require.NoError(t, g.AddEdge("leader", "follower2"))

	order, err := g.TopoSort(lexical)
	require.NoError(t, err)
	require.Equal(t, []string{"leader", "follower1", "follower2"}, order)
}

func TestTopoSort_TieBreakIsDeterministic(t *testing.T) {
	g := New()
	for _, id := range []string{"c", "a", "b"} {
		g.AddNode(id)
	}
	order, err := g.TopoSort(lexical)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopoSort_ReportsCycles(t *testing.T) {
	g := New()
	g.AddNode("x")
	g.AddNode("y")
	require.NoError(t, g.AddEdge("x", "y"))
	require.NoError(t, g.AddEdge("y", "x"))

	_, err := g.TopoSort(lexical)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "cycle"))
}

func TestAddEdge_Validation(t *testing.T) {
	g := New()
	g.AddNode("a")
	require.Error(t, g.AddEdge("a", "a"))
	require.Error(t, g.AddEdge("a", "ghost"))
	require.Error(t, g.AddEdge("ghost", "a"))
}
