package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines(t *testing.T) map[string]Engine {
	t.Helper()
	mem := NewMemEngine()
	badger, err := OpenBadgerEngine(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = badger.Close() })
	return map[string]Engine{
		"mem":    mem,
		"badger": badger,
	}
}

func TestEngine_CreateGetNode(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			n := &Node{ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"name": "ada"}}
			created, err := eng.CreateNode(n)
			require.NoError(t, err)
			assert.Equal(t, NodeID("n1"), created.ID)

			got, err := eng.GetNode("n1")
			require.NoError(t, err)
			assert.Equal(t, []string{"Person"}, got.Labels)
			assert.Equal(t, "ada", got.Properties["name"])
		})
	}
}

func TestEngine_GetNode_MissingReturnsNotFound(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := eng.GetNode("absent")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEngine_UpdateNode(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			n := &Node{ID: "n1", Properties: map[string]any{"age": 1}}
			_, err := eng.CreateNode(n)
			require.NoError(t, err)

			n.Properties["age"] = 2
			require.NoError(t, eng.UpdateNode(n))

			got, err := eng.GetNode("n1")
			require.NoError(t, err)
			assert.EqualValues(t, 2, got.Properties["age"])
		})
	}
}

func TestEngine_UpdateNode_MissingReturnsNotFound(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			err := eng.UpdateNode(&Node{ID: "ghost"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEngine_DeleteNode(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := eng.CreateNode(&Node{ID: "n1"})
			require.NoError(t, err)
			require.NoError(t, eng.DeleteNode("n1"))

			_, err = eng.GetNode("n1")
			assert.ErrorIs(t, err, ErrNotFound)

			err = eng.DeleteNode("n1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEngine_AllNodes(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := eng.CreateNode(&Node{ID: "n1"})
			require.NoError(t, err)
			_, err = eng.CreateNode(&Node{ID: "n2"})
			require.NoError(t, err)

			all, err := eng.AllNodes()
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestEngine_CreateGetDeleteEdge(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			e := &Edge{ID: "e1", Type: "KNOWS", From: "a", To: "b"}
			created, err := eng.CreateEdge(e)
			require.NoError(t, err)
			assert.Equal(t, EdgeID("e1"), created.ID)

			got, err := eng.GetEdge("e1")
			require.NoError(t, err)
			assert.Equal(t, "KNOWS", got.Type)

			require.NoError(t, eng.DeleteEdge("e1"))
			_, err = eng.GetEdge("e1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEngine_Stats(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := eng.CreateNode(&Node{ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"x": 1}})
			require.NoError(t, err)
			_, err = eng.CreateEdge(&Edge{ID: "e1", Type: "KNOWS", From: "n1", To: "n1"})
			require.NoError(t, err)

			stats, err := eng.Stats()
			require.NoError(t, err)
			assert.Equal(t, int64(1), stats.Nodes)
			assert.Equal(t, int64(1), stats.Edges)
		})
	}
}
