package vlogdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vlogdb/blobstore"
	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/internal/snapshot"
)

// Compression re-exports the snapshot codec selector.
type Compression = snapshot.Compression

// Snapshot compression codecs.
const (
	CompressionNone   = snapshot.CompressionNone
	CompressionZstd   = snapshot.CompressionZstd
	CompressionLZ4    = snapshot.CompressionLZ4
	CompressionSnappy = snapshot.CompressionSnappy
)

type snapshotOptions struct {
	compression Compression
	bytesPerSec int
}

// SnapshotOption configures Snapshot and Restore.
type SnapshotOption func(*snapshotOptions)

// WithCompression selects the log blob codec. Restore reads the codec from
// the manifest and ignores this option.
func WithCompression(c Compression) SnapshotOption {
	return func(o *snapshotOptions) { o.compression = c }
}

// WithRateLimit caps how fast log bytes are read, in bytes per second.
// Zero disables the limit.
func WithRateLimit(bytesPerSec int) SnapshotOption {
	return func(o *snapshotOptions) { o.bytesPerSec = bytesPerSec }
}

func applySnapshotOptions(opts []SnapshotOption) snapshotOptions {
	o := snapshotOptions{compression: CompressionZstd}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Snapshot writes the table's log and metadata to store under name.
//
// Pending appends are flushed first. The log is captured up to its size at
// that moment; records written later, whose bytes lie past that size, are
// left out. Writers are not blocked while the snapshot runs.
func (t *Table) Snapshot(ctx context.Context, store blobstore.Store, name string, opts ...SnapshotOption) (err error) {
	if err := t.checkOpen(); err != nil {
		return err
	}
	o := applySnapshotOptions(opts)

	var entries []snapshot.Entry
	defer func() { t.logger.LogSnapshot(ctx, "snapshot", name, len(entries), err) }()

	if err := t.buffers.flushAll(ctx); err != nil {
		return err
	}
	size, err := t.log.Size()
	if err != nil {
		return translateError(err)
	}

	entries, err = t.snapshotEntries(ctx, uint64(size))
	if err != nil {
		return err
	}

	if err := t.uploadLog(ctx, store, snapshot.BlobName(name, snapshot.LogBlob), size, o); err != nil {
		return err
	}

	m := &snapshot.Manifest{
		FormatVersion: snapshot.FormatVersion,
		Table:         t.name,
		CreatedAt:     time.Now().UTC(),
		Compression:   o.compression.String(),
		LogSize:       size,
		Entries:       entries,
	}
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	return store.Put(ctx, snapshot.BlobName(name, snapshot.ManifestBlob), &buf)
}

// snapshotEntries collects every key of the table whose record lies within
// the first size bytes of the log.
func (t *Table) snapshotEntries(ctx context.Context, size uint64) ([]snapshot.Entry, error) {
	prefix := t.name + "/"
	entries := []snapshot.Entry{}
	for k, err := range t.store.ScanPrefix(ctx, prefix) {
		if err != nil {
			return nil, translateError(err)
		}
		e := snapshot.Entry{Key: strings.TrimPrefix(k, prefix)}

		m, ok, err := t.store.Get(ctx, k)
		if err != nil {
			return nil, translateError(err)
		}
		if ok && m.End() <= size {
			if e.Fields, err = m.Fields(); err != nil {
				return nil, err
			}
		}
		if e.Members, err = t.store.SetMembers(ctx, k); err != nil {
			return nil, translateError(err)
		}
		if e.Fields == nil && len(e.Members) == 0 {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// uploadLog streams the log through the compressor into the blob store.
func (t *Table) uploadLog(ctx context.Context, store blobstore.Store, blob string, size int64, o snapshotOptions) error {
	src, err := t.log.NewReader(size)
	if err != nil {
		return translateError(err)
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := snapshot.NewWriter(pw, o.compression)
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		if _, err := io.Copy(w, snapshot.NewThrottle(gctx, src, o.bytesPerSec)); err != nil {
			pw.CloseWithError(err)
			return err
		}
		err = w.Close()
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := store.Put(gctx, blob, pr)
		// Unblock the writer if Put returned before draining the pipe.
		pr.CloseWithError(err)
		return err
	})
	return g.Wait()
}

// Restore opens table tableName and fills it from snapshot name in store.
// The table's log must be empty; its index entries are overwritten.
//
// On failure the table is closed and the error returned.
func Restore(ctx context.Context, store blobstore.Store, name, tableName string, optFns ...Option) (_ *Table, err error) {
	m, err := readManifest(ctx, store, name)
	if err != nil {
		return nil, err
	}

	t, err := Open(ctx, tableName, optFns...)
	if err != nil {
		return nil, err
	}
	defer func() {
		t.logger.LogSnapshot(ctx, "restore", name, len(m.Entries), err)
		if err != nil {
			_ = t.Close(ctx)
		}
	}()

	if err := t.restoreLog(ctx, store, name, m); err != nil {
		return nil, err
	}
	for _, e := range m.Entries {
		if err := t.restoreEntry(ctx, e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readManifest(ctx context.Context, store blobstore.Store, name string) (*snapshot.Manifest, error) {
	rc, err := store.Open(ctx, snapshot.BlobName(name, snapshot.ManifestBlob))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, err
	}
	defer rc.Close()
	return snapshot.DecodeManifest(rc)
}

func (t *Table) restoreLog(ctx context.Context, store blobstore.Store, name string, m *snapshot.Manifest) error {
	c, err := snapshot.ParseCompression(m.Compression)
	if err != nil {
		return err
	}
	rc, err := store.Open(ctx, snapshot.BlobName(name, snapshot.LogBlob))
	if err != nil {
		return err
	}
	defer rc.Close()

	dec, err := snapshot.NewReader(rc, c)
	if err != nil {
		return err
	}
	defer dec.Close()

	n, err := t.log.Load(ctx, dec)
	if err != nil {
		return translateError(err)
	}
	if n != m.LogSize {
		return fmt.Errorf("%w: snapshot log has %d bytes, manifest says %d", ErrCorruptRecord, n, m.LogSize)
	}
	return nil
}

func (t *Table) restoreEntry(ctx context.Context, e snapshot.Entry) error {
	key := t.indexKey(e.Key)
	if e.Fields != nil {
		md, err := index.MetadataFromFields(e.Fields)
		if err != nil {
			return translateError(err)
		}
		if err := t.store.Set(ctx, key, md); err != nil {
			return translateError(err)
		}
	}
	for _, member := range e.Members {
		if err := t.store.SetAdd(ctx, key, member); err != nil {
			return translateError(err)
		}
	}
	return nil
}
