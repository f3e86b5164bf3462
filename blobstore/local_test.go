package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreLifecycle(t *testing.T, store Store) {
	ctx := context.Background()

	data := []byte("hello world, this is a test blob")
	require.NoError(t, store.Put(ctx, "snap/log.bin", bytes.NewReader(data)))
	require.NoError(t, store.Put(ctx, "snap/manifest.json", bytes.NewReader([]byte("{}"))))
	require.NoError(t, store.Put(ctx, "other.bin", bytes.NewReader(nil)))

	rc, err := store.Open(ctx, "snap/log.bin")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "snap/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap/log.bin", "snap/manifest.json"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Put replaces.
	require.NoError(t, store.Put(ctx, "snap/log.bin", bytes.NewReader([]byte("v2"))))
	rc, err = store.Open(ctx, "snap/log.bin")
	require.NoError(t, err)
	got, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "v2", string(got))

	require.NoError(t, store.Delete(ctx, "snap/log.bin"))
	require.NoError(t, store.Delete(ctx, "snap/log.bin"))

	_, err = store.Open(ctx, "snap/log.bin")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, "", bytes.NewReader(nil)), ErrInvalidName)
}

func TestLocalStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	testStoreLifecycle(t, NewLocalStore(dir))

	_, err := os.Stat(filepath.Join(dir, "snap", "manifest.json"))
	require.NoError(t, err)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())
}

func TestLocalStore_RejectsEscapingNames(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	err := store.Put(ctx, "../outside", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = store.Open(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_PutCanceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Put(ctx, "a", bytes.NewReader([]byte("data")))
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.Open(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Size(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "a", bytes.NewReader([]byte("abc"))))
	assert.Equal(t, int64(3), store.Size("a"))
	assert.Equal(t, int64(-1), store.Size("b"))
}
