package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	parent NodeID
	height int
}

func TestArena_Alloc(t *testing.T) {
	a := New[node](2)

	id0, err := a.Alloc(node{parent: Nil, height: 1})
	require.NoError(t, err)
	id1, err := a.Alloc(node{parent: id0})
	require.NoError(t, err)

	assert.Equal(t, NodeID(0), id0)
	assert.Equal(t, NodeID(1), id1)
	assert.Equal(t, 2, a.Len())

	n := a.Get(id1)
	require.NotNil(t, n)
	assert.Equal(t, id0, n.parent)

	n.height = 7
	assert.Equal(t, 7, a.Get(id1).height)
}

func TestArena_FreeReuse(t *testing.T) {
	a := New[node](0)

	id0, _ := a.Alloc(node{height: 1})
	id1, _ := a.Alloc(node{height: 2})

	assert.True(t, a.Free(id0))
	assert.False(t, a.Free(id0), "double free is a no-op")
	assert.Nil(t, a.Get(id0))
	assert.Equal(t, 1, a.Len())

	id2, err := a.Alloc(node{height: 3})
	require.NoError(t, err)
	assert.Equal(t, id0, id2, "freed slot is recycled")
	assert.Equal(t, 3, a.Get(id2).height)
	assert.Equal(t, 2, a.Get(id1).height)
}

func TestArena_InvalidHandles(t *testing.T) {
	a := New[node](0)

	assert.Nil(t, a.Get(Nil))
	assert.Nil(t, a.Get(42))
	assert.False(t, a.Free(Nil))
}

func TestArena_ResetAndStats(t *testing.T) {
	a := New[node](4)
	for i := 0; i < 4; i++ {
		_, err := a.Alloc(node{height: i})
		require.NoError(t, err)
	}
	a.Free(2)

	st := a.Stats()
	assert.Equal(t, 4, st.Slots)
	assert.Equal(t, 3, st.Live)
	assert.Equal(t, 1, st.Free)
	assert.Equal(t, int64(4), st.TotalAllocs)
	assert.Positive(t, st.BytesUsed)

	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.Nil(t, a.Get(0))

	id, _ := a.Alloc(node{})
	assert.Equal(t, NodeID(0), id)
}
