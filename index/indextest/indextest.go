// Package indextest holds the behavioral suite every index.Store
// implementation must pass.
package indextest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/model"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) index.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)

		exists, err := s.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("SetGet", func(t *testing.T) {
		s := newStore(t)
		m := index.Metadata{
			Offset:   10,
			Length:   20,
			Type:     model.TagList,
			Pointers: []string{"t/k/~ptr/1", "t/k/~ptr/2"},
			Args:     json.RawMessage(`{"repr":"int32"}`),
		}
		require.NoError(t, s.Set(ctx, "t/k", m))

		got, ok, err := s.Get(ctx, "t/k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, m.Offset, got.Offset)
		assert.Equal(t, m.Length, got.Length)
		assert.Equal(t, m.Type, got.Type)
		assert.Equal(t, m.Pointers, got.Pointers)
		assert.JSONEq(t, string(m.Args), string(got.Args))

		exists, err := s.Exists(ctx, "t/k")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", index.Metadata{Offset: 1, Length: 1}))
		require.NoError(t, s.Set(ctx, "k", index.Metadata{Offset: 1, Length: 1, Pointers: []string{"p"}}))

		got, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"p"}, got.Pointers)
		assert.Nil(t, got.Args)
	})

	t.Run("Sets", func(t *testing.T) {
		s := newStore(t)
		for _, m := range []string{"b", "a", "b", "c"} {
			require.NoError(t, s.SetAdd(ctx, "t/set", m))
		}
		members, err := s.SetMembers(ctx, "t/set")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, members)

		members, err = s.SetMembers(ctx, "t/empty")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("ScanPrefix", func(t *testing.T) {
		s := newStore(t)
		for i := range 25 {
			require.NoError(t, s.Set(ctx, fmt.Sprintf("a/%02d", i), index.Metadata{Offset: uint64(i)}))
		}
		require.NoError(t, s.Set(ctx, "b/0", index.Metadata{}))
		require.NoError(t, s.Set(ctx, "a", index.Metadata{}))
		require.NoError(t, s.SetAdd(ctx, "a/set", "x"))

		var keys []string
		for k, err := range s.ScanPrefix(ctx, "a/") {
			require.NoError(t, err)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		require.Len(t, keys, 26)
		assert.Equal(t, "a/00", keys[0])
		assert.Equal(t, "a/set", keys[25])
	})

	t.Run("ScanStopsEarly", func(t *testing.T) {
		s := newStore(t)
		for i := range 5 {
			require.NoError(t, s.Set(ctx, fmt.Sprintf("p/%d", i), index.Metadata{}))
		}
		n := 0
		for _, err := range s.ScanPrefix(ctx, "p/") {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "t1/a", index.Metadata{}))
		require.NoError(t, s.Set(ctx, "t1/b", index.Metadata{}))
		require.NoError(t, s.SetAdd(ctx, "t1/s", "m"))
		require.NoError(t, s.Set(ctx, "t2/a", index.Metadata{}))

		require.NoError(t, s.DeletePrefix(ctx, "t1/"))

		ok, err := s.Exists(ctx, "t1/a")
		require.NoError(t, err)
		assert.False(t, ok)
		members, err := s.SetMembers(ctx, "t1/s")
		require.NoError(t, err)
		assert.Empty(t, members)
		ok, err = s.Exists(ctx, "t2/a")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("FlushAll", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "x", index.Metadata{}))
		require.NoError(t, s.SetAdd(ctx, "y", "m"))
		require.NoError(t, s.FlushAll(ctx))

		n := 0
		for _, err := range s.ScanPrefix(ctx, "") {
			require.NoError(t, err)
			n++
		}
		assert.Zero(t, n)
	})
}
