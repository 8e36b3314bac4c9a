package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := NewNode("Customers", NodeBaseTable, nil, "7")
	assert.False(t, n.Saved())

	require.NoError(t, Save(ctx, s, n))
	require.True(t, n.Saved())
	id := n.ID

	n.Name = "Clients"
	require.NoError(t, Save(ctx, s, n))
	assert.Equal(t, id, n.ID, "second save updates in place")

	got, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Clients", got.Name)

	counts, err := s.CountNodesByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[NodeBaseTable])
}

func TestSaveVanishedNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := NewNode("gone", NodeField, nil, "")
	require.NoError(t, Save(ctx, s, n))
	_, err := s.DeleteNode(ctx, n.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, Save(ctx, s, n), ErrNotFound)
}

func TestLinkSavesEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	parent := NewNode("Accounts", NodeAccount, Details{"owner": "sys"}, "")
	child := NewNode("Users", NodeBaseTable, Details{"rows": float64(42)}, "")

	edgeID, err := Link(ctx, s, parent, child, EdgeContains)
	require.NoError(t, err)
	assert.True(t, parent.Saved())
	assert.True(t, child.Saved())

	children, err := s.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].Node.ID)
	assert.Equal(t, EdgeContains, children[0].EdgeType)
	assert.Equal(t, edgeID, children[0].EdgeID)
	assert.Equal(t, Details{"rows": float64(42)}, children[0].Node.Details)
}

func TestParseTypes(t *testing.T) {
	for _, nt := range NodeTypes {
		got, err := ParseNodeType(string(nt))
		require.NoError(t, err)
		assert.Equal(t, nt, got)
	}
	_, err := ParseNodeType("Fields")
	assert.ErrorIs(t, err, ErrInvalidType)

	for _, et := range EdgeTypes {
		got, err := ParseEdgeType(string(et))
		require.NoError(t, err)
		assert.Equal(t, et, got)
	}
	_, err = ParseEdgeType("related")
	assert.ErrorIs(t, err, ErrInvalidType)
}
