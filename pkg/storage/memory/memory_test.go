package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/onlinetime/pkg/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New[int64]()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "a", 1))
	require.NoError(t, s.PutMany(ctx, map[string]int64{"b": 2, "c": 3}))

	v, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	many, err := s.GetMany(ctx, []string{"a", "c", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 1, "c": 3}, many)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"b": 2, "c": 3}, all)

	// The snapshot is detached from the store.
	all["z"] = 9
	_, ok, err = s.Get(ctx, "z")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := New[string]()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err := s.Get(ctx, "a")
	assert.True(t, storage.IsClosed(err))
	assert.True(t, storage.IsClosed(s.Put(ctx, "a", "b")))
	assert.True(t, storage.IsClosed(s.PutMany(ctx, map[string]string{"a": "b"})))
	assert.True(t, storage.IsClosed(s.Delete(ctx, "a")))
	_, err = s.GetMany(ctx, []string{"a"})
	assert.True(t, storage.IsClosed(err))
	_, err = s.All(ctx)
	assert.True(t, storage.IsClosed(err))
}
