package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

func TestRebuildLock_Exclusive(t *testing.T) {
	dir := t.TempDir()
	first := NewRebuildLock(dir, "shop/products")
	second := NewRebuildLock(dir, "shop/products")

	assert.Equal(t, filepath.Join(dir, "shop_products.rebuild.lock"), first.Path())

	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock(), "unlock twice is a no-op")

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestCreateAndInitializeIndex_LockHeldElsewhere(t *testing.T) {
	// Given another process holding the rebuild lock for the alias
	dir := t.TempDir()
	m, spy := newManager(t, Options{StateDir: dir})
	held := NewRebuildLock(dir, "a")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = held.Unlock() })

	// When a build starts
	docs := SliceSource([]backend.Document{{ID: "1", Source: map[string]any{"name": "x", "price": 1}}})
	_, err = m.CreateAndInitializeIndex(context.Background(), "a", false, docs, nil, ModeBlocking)

	// Then it is refused before touching the backend
	assert.ErrorIs(t, err, errors.ErrRebuildInProgress)
	assert.Empty(t, spy.mutations())

	// And succeeds once the lock is released
	require.NoError(t, held.Unlock())
	_, err = m.CreateAndInitializeIndex(context.Background(), "a", false, docs, nil, ModeBlocking)
	require.NoError(t, err)
}
