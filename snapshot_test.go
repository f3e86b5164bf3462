package vlogdb

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vlogdb/blobstore"
	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/internal/snapshot"
	"github.com/hupe1980/vlogdb/model"
	"github.com/hupe1980/vlogdb/testutil"
)

func TestSnapshotRestore(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4, CompressionSnappy} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			src := openTestTable(t)
			rng := testutil.NewRNG(99)

			want := make(map[string]model.Value)
			for range 30 {
				k := rng.Key("snap:")
				v := rng.Value()
				want[k] = v
				require.NoError(t, src.Set(ctx, k, v))
			}
			require.NoError(t, src.Set(ctx, "r1", model.String("x"), WithReference("grp")))
			require.NoError(t, src.Set(ctx, "r2", model.String("y"), WithReference("grp")))
			require.NoError(t, src.SAdd(ctx, "tags", "a"))
			require.NoError(t, src.SAdd(ctx, "tags", "b"))
			for i := range 5 {
				require.NoError(t, src.Append(ctx, "series", model.Int(int64(i)), 2))
			}

			store := blobstore.NewMemoryStore()
			require.NoError(t, src.Snapshot(ctx, store, "nightly", WithCompression(c)))

			names, err := store.List(ctx, "nightly/")
			require.NoError(t, err)
			assert.Equal(t, []string{"nightly/log", "nightly/manifest.json"}, names)

			dst, err := Restore(ctx, store, "nightly", "restored", WithBaseDir(t.TempDir()))
			require.NoError(t, err)
			defer dst.Close(ctx)

			for k, v := range want {
				got, ok, err := dst.Get(ctx, k)
				require.NoError(t, err)
				require.True(t, ok, k)
				assert.True(t, v.Equal(got), "key %s", k)
			}

			vals, err := dst.GetWithReference(ctx, "grp")
			require.NoError(t, err)
			require.Len(t, vals, 2)
			assert.True(t, model.String("y").Equal(vals[1]))

			members, err := dst.Members(ctx, "tags")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, members)

			got, _, err := dst.Get(ctx, "series")
			require.NoError(t, err)
			assert.True(t, model.Ints(0, 1, 2, 3, 4).Equal(got), "got %s", got)
		})
	}
}

func TestSnapshotSkipsRecordsPastCapturedSize(t *testing.T) {
	ctx := context.Background()
	src := openTestTable(t)
	require.NoError(t, src.Set(ctx, "early", model.String("in")))

	size, err := src.log.Size()
	require.NoError(t, err)

	require.NoError(t, src.Set(ctx, "late", model.String("out")))

	entries, err := src.snapshotEntries(ctx, uint64(size))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "early", entries[0].Key)
}

func TestSnapshotManifest(t *testing.T) {
	ctx := context.Background()
	src := openTestTable(t)
	require.NoError(t, src.Set(ctx, "k", model.Ints(1, 2)))

	store := blobstore.NewMemoryStore()
	require.NoError(t, src.Snapshot(ctx, store, "s", WithCompression(CompressionLZ4), WithRateLimit(1<<20)))

	rc, err := store.Open(ctx, "s/manifest.json")
	require.NoError(t, err)
	defer rc.Close()

	m, err := snapshot.DecodeManifest(rc)
	require.NoError(t, err)
	assert.Equal(t, "test", m.Table)
	assert.Equal(t, "lz4", m.Compression)
	assert.Positive(t, m.LogSize)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "k", m.Entries[0].Key)
	assert.Equal(t, "2", m.Entries[0].Fields[index.FieldType])
}

func TestRestoreErrors(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	t.Run("NotFound", func(t *testing.T) {
		_, err := Restore(ctx, store, "missing", "t", WithBaseDir(t.TempDir()))
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("NotEmpty", func(t *testing.T) {
		base := t.TempDir()
		src := openTestTable(t)
		require.NoError(t, src.Set(ctx, "k", model.Int(1)))
		require.NoError(t, src.Snapshot(ctx, store, "s"))

		existing, err := Open(ctx, "busy", WithBaseDir(base))
		require.NoError(t, err)
		require.NoError(t, existing.Set(ctx, "x", model.Int(1)))
		require.NoError(t, existing.Close(ctx))

		_, err = Restore(ctx, store, "s", "busy", WithBaseDir(base))
		assert.ErrorIs(t, err, ErrTableNotEmpty)
	})

	t.Run("TruncatedLog", func(t *testing.T) {
		src := openTestTable(t)
		require.NoError(t, src.Set(ctx, "k", model.String("0123456789")))
		require.NoError(t, src.Snapshot(ctx, store, "trunc", WithCompression(CompressionNone)))

		rc, err := store.Open(ctx, "trunc/log")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.NoError(t, store.Put(ctx, "trunc/log", bytes.NewReader(data[:4])))

		_, err = Restore(ctx, store, "trunc", "t", WithBaseDir(t.TempDir()))
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
}

func TestSnapshotClosed(t *testing.T) {
	ctx := context.Background()
	tbl, err := Open(ctx, "c", WithBaseDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, tbl.Close(ctx))

	err = tbl.Snapshot(ctx, blobstore.NewMemoryStore(), "s")
	assert.ErrorIs(t, err, ErrClosed)
}
