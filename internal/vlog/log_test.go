package vlog

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/vlogdb/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T, path string, optFns ...func(o *Options)) *Log {
	t.Helper()
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	l, err := Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t, filepath.Join(t.TempDir(), "t.vlog"))

	off1, len1, err := l.Append(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off1)
	assert.Equal(t, uint64(5), len1)

	off2, len2, err := l.Append(ctx, []byte("world!"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), off2)
	assert.Equal(t, uint64(6), len2)

	got, err := l.ReadAt(off1, len1)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, err = l.ReadAt(off2, len2)
	require.NoError(t, err)
	assert.Equal(t, "world!", string(got))

	size, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
}

func TestAppendEmptyPayload(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t, filepath.Join(t.TempDir(), "t.vlog"))

	_, _, err := l.Append(ctx, []byte("abc"))
	require.NoError(t, err)

	off, n, err := l.Append(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), off)
	assert.Zero(t, n)

	got, err := l.ReadAt(off, n)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadOutOfRange(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t, filepath.Join(t.TempDir(), "t.vlog"))

	_, _, err := l.Append(ctx, []byte("abc"))
	require.NoError(t, err)

	_, err = l.ReadAt(1, 10)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = l.ReadAt(100, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReadManyPreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t, filepath.Join(t.TempDir(), "t.vlog"))

	var ranges []Range
	for _, s := range []string{"a", "bb", "ccc", "dddd"} {
		off, n, err := l.Append(ctx, []byte(s))
		require.NoError(t, err)
		ranges = append(ranges, Range{Offset: off, Length: n})
	}

	reversed := []Range{ranges[3], ranges[1], ranges[2], ranges[0]}
	got, err := l.ReadMany(reversed)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "dddd", string(got[0]))
	assert.Equal(t, "bb", string(got[1]))
	assert.Equal(t, "ccc", string(got[2]))
	assert.Equal(t, "a", string(got[3]))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.vlog")

	l, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	off, n, err := l.Append(ctx, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l = openTestLog(t, path)
	got, err := l.ReadAt(off, n)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))

	off2, _, err := l.Append(ctx, []byte("more"))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), off2)
}

func TestWriteContention(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.vlog")

	holder := openTestLog(t, path)
	require.NoError(t, tryLockExclusive(holder.w))

	var waited time.Duration
	contender := openTestLog(t, path, func(o *Options) {
		o.LockTimeout = 50 * time.Millisecond
		o.LockPollInterval = 5 * time.Millisecond
		o.OnLockWait = func(wait time.Duration, _ error) { waited = wait }
	})

	_, _, err := contender.Append(ctx, []byte("blocked"))
	assert.ErrorIs(t, err, ErrWriteContention)
	assert.GreaterOrEqual(t, waited, 40*time.Millisecond)

	require.NoError(t, unlockFile(holder.w))

	off, n, err := contender.Append(ctx, []byte("free"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off)
	assert.Equal(t, uint64(4), n)
}

func TestLockWaitHonorsCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.vlog")

	holder := openTestLog(t, path)
	require.NoError(t, tryLockExclusive(holder.w))
	defer func() { _ = unlockFile(holder.w) }()

	contender := openTestLog(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := contender.Append(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentAppendsDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.vlog")

	a := openTestLog(t, path)
	b := openTestLog(t, path)

	const perWriter = 50
	payload := bytes.Repeat([]byte("x"), 32)

	var mu sync.Mutex
	var ranges []Range

	var wg sync.WaitGroup
	for _, l := range []*Log{a, a, b, b} {
		wg.Add(1)
		go func(l *Log) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				off, n, err := l.Append(ctx, payload)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				ranges = append(ranges, Range{Offset: off, Length: n})
				mu.Unlock()
			}
		}(l)
	}
	wg.Wait()

	require.Len(t, ranges, 4*perWriter)
	seen := make(map[uint64]bool, len(ranges))
	for _, r := range ranges {
		assert.Zero(t, r.Offset%32, "misaligned offset %d", r.Offset)
		assert.False(t, seen[r.Offset], "offset %d handed out twice", r.Offset)
		seen[r.Offset] = true
	}

	size, err := a.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4*perWriter*32), size)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t, filepath.Join(t.TempDir(), "t.vlog"))

	_, _, err := l.Append(ctx, []byte("gone soon"))
	require.NoError(t, err)

	require.NoError(t, l.Reset())

	size, err := l.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	off, _, err := l.Append(ctx, []byte("fresh"))
	require.NoError(t, err)
	assert.Zero(t, off)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	l, err := Open(filepath.Join(t.TempDir(), "t.vlog"), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, _, err = l.Append(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.ReadAt(0, 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Reset(), ErrClosed)
}

func TestLoadAndNewReader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := openTestLog(t, filepath.Join(dir, "src.vlog"))
	for _, s := range []string{"one", "two", "three"} {
		_, _, err := src.Append(ctx, []byte(s))
		require.NoError(t, err)
	}

	r, err := src.NewReader(6)
	require.NoError(t, err)

	dst := openTestLog(t, filepath.Join(dir, "dst.vlog"))
	n, err := dst.Load(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	got, err := dst.ReadAt(3, 3)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	_, err = dst.Load(ctx, bytes.NewReader([]byte("again")))
	assert.ErrorIs(t, err, ErrNotEmpty)

	full, err := src.NewReader(11)
	require.NoError(t, err)
	all, err := io.ReadAll(full)
	require.NoError(t, err)
	assert.Equal(t, "onetwothree", string(all))
}

func TestInjectedFaults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("WriteFailure", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("write.vlog", fs.Fault{FailAfterBytes: 8})

		l := openTestLog(t, filepath.Join(dir, "write.vlog"), func(o *Options) { o.FS = ffs })

		_, _, err := l.Append(ctx, []byte("12345678"))
		require.NoError(t, err)

		_, _, err = l.Append(ctx, []byte("9"))
		assert.ErrorIs(t, err, fs.ErrInjected)
	})

	t.Run("SyncFailure", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("sync.vlog", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

		l := openTestLog(t, filepath.Join(dir, "sync.vlog"), func(o *Options) {
			o.FS = ffs
			o.Durability = DurabilitySync
		})

		_, _, err := l.Append(ctx, []byte("x"))
		assert.ErrorIs(t, err, fs.ErrInjected)
	})
}
