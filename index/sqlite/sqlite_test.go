package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/index/indextest"
	"github.com/hupe1980/vlogdb/model"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	indextest.Run(t, func(t *testing.T) index.Store { return newTestStore(t, WithPageSize(7)) })
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	m := index.Metadata{Offset: 1 << 40, Length: 3, Type: model.TagDict}
	require.NoError(t, s.Set(ctx, "t/k", m))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(ctx, "t/k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1<<40), got.Offset)
	assert.Equal(t, model.TagDict, got.Type)
}

func TestScanPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithPageSize(3))
	for i := range 10 {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("t/%d", i), index.Metadata{}))
	}

	var keys []string
	for k, err := range s.ScanPrefix(ctx, "t/") {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	require.Len(t, keys, 10)
	assert.IsIncreasing(t, keys)
}
