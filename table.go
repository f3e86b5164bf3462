package vlogdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/internal/codec"
	"github.com/hupe1980/vlogdb/internal/vlog"
	"github.com/hupe1980/vlogdb/model"
)

// LogFileName is the name of the value log inside a table directory.
const LogFileName = "values.vlog"

// Table is a named value log plus its slice of the metadata index.
//
// All methods are safe for concurrent use. Writes to the same key from
// different goroutines or processes are last-writer-wins.
type Table struct {
	name      string
	dir       string
	log       *vlog.Log
	store     index.Store
	ownsStore bool
	registry  *codec.Registry
	buffers   *appendBuffer

	// refMu serializes reference group updates within the process.
	refMu sync.Mutex

	logger               *Logger
	metrics              MetricsCollector
	referenceConcurrency int
	maxRecordSize        int

	closed atomic.Bool
}

// Open opens or creates the table name under the configured base directory.
func Open(ctx context.Context, name string, optFns ...Option) (*Table, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("vlogdb: invalid table name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)

	dir := filepath.Join(o.baseDir, name)
	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("vlogdb: create table dir: %w", err)
	}

	metrics := o.metricsCollector
	log, err := vlog.Open(filepath.Join(dir, LogFileName), vlog.Options{
		FS:               o.fs,
		Durability:       o.durability,
		LockTimeout:      o.lockTimeout,
		LockPollInterval: o.lockPollInterval,
		OnLockWait:       metrics.RecordLockWait,
	})
	if err != nil {
		return nil, err
	}

	store, owns := o.store, false
	if store == nil {
		store, owns = index.NewMemoryStore(), true
	}

	t := &Table{
		name:                 name,
		dir:                  dir,
		log:                  log,
		store:                store,
		ownsStore:            owns,
		registry:             codec.NewDefaultRegistry(),
		logger:               o.logger.WithTable(name),
		metrics:              metrics,
		referenceConcurrency: o.referenceConcurrency,
		maxRecordSize:        o.maxRecordSize,
	}
	t.buffers = newAppendBuffer(t)
	t.logger.InfoContext(ctx, "table opened", "dir", dir)
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Dir returns the table directory.
func (t *Table) Dir() string { return t.dir }

// RecordOption modifies how a key is addressed or grouped.
type RecordOption func(*recordOptions)

type recordOptions struct {
	column    string
	reference string
}

// WithColumn addresses the composite key key + "/" + column.
func WithColumn(column string) RecordOption {
	return func(o *recordOptions) {
		o.column = column
	}
}

// WithReference adds the key to the reference group id. It only affects Set.
func WithReference(id string) RecordOption {
	return func(o *recordOptions) {
		o.reference = id
	}
}

func applyRecordOptions(key string, opts []RecordOption) (string, recordOptions) {
	var o recordOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.column != "" {
		key = ComposeKey(key, o.column)
	}
	return key, o
}

// ComposeKey returns the composite key for a column.
func ComposeKey(key, column string) string {
	return key + "/" + column
}

// indexKey namespaces a table key in the shared index.
func (t *Table) indexKey(key string) string {
	return t.name + "/" + key
}

func (t *Table) checkOpen() error {
	if t.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Set encodes value, appends it to the log and records its metadata.
//
// The metadata write happens strictly after the log append returns, so a
// reader that sees the record also sees the bytes. If the metadata write
// fails the appended bytes are orphaned and a *PartialWriteError is returned.
func (t *Table) Set(ctx context.Context, key string, value model.Value, opts ...RecordOption) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	key, o := applyRecordOptions(key, opts)
	if _, err := t.set(ctx, key, value); err != nil {
		return err
	}
	if o.reference != "" {
		return t.addToReference(ctx, key, o.reference)
	}
	return nil
}

func (t *Table) set(ctx context.Context, key string, value model.Value) (m index.Metadata, err error) {
	start := time.Now()
	size := 0
	defer func() {
		t.metrics.RecordSet(size, time.Since(start), err)
		t.logger.LogSet(ctx, key, m.Offset, m.Length, err)
	}()

	if err := ctx.Err(); err != nil {
		return index.Metadata{}, err
	}
	payload, tag, args, err := t.registry.Encode(value)
	if err != nil {
		return index.Metadata{}, err
	}
	size = len(payload)
	if size > t.maxRecordSize {
		return index.Metadata{}, fmt.Errorf("%w: %q encodes to %d bytes, limit %d",
			ErrRecordTooLarge, key, size, t.maxRecordSize)
	}

	off, n, err := t.log.Append(ctx, payload)
	if err != nil {
		return index.Metadata{}, translateError(err)
	}

	m = index.Metadata{Offset: off, Length: n, Type: tag, Args: args}
	if err := t.store.Set(ctx, t.indexKey(key), m); err != nil {
		t.logger.LogPartialWrite(ctx, key, off, n, err)
		return m, &PartialWriteError{Key: key, Offset: off, Length: n, cause: translateError(err)}
	}
	return m, nil
}

// Get returns the value stored under key. ok is false when the key is absent.
//
// Records with continuation pointers are joined in pointer order. Only
// lists and strings can be joined; any other combination, or a pointer to a
// missing key, fails with ErrInvalidPointerChain.
func (t *Table) Get(ctx context.Context, key string, opts ...RecordOption) (v model.Value, ok bool, err error) {
	if err := t.checkOpen(); err != nil {
		return model.Value{}, false, err
	}
	key, _ = applyRecordOptions(key, opts)

	start := time.Now()
	defer func() {
		t.metrics.RecordGet(ok, time.Since(start), err)
		t.logger.LogGet(ctx, key, ok, err)
	}()
	return t.get(ctx, key)
}

func (t *Table) get(ctx context.Context, key string) (model.Value, bool, error) {
	m, ok, err := t.store.Get(ctx, t.indexKey(key))
	if err != nil || !ok {
		return model.Value{}, false, translateError(err)
	}
	payload, err := t.log.ReadAt(m.Offset, m.Length)
	if err != nil {
		return model.Value{}, false, translateError(err)
	}
	v, err := t.registry.Decode(m.Type, payload, m.Args)
	if err != nil {
		return model.Value{}, false, err
	}
	v, err = t.resolvePointers(ctx, key, v, m.Pointers)
	if err != nil {
		return model.Value{}, false, err
	}
	return v, true, nil
}

// resolvePointers appends the values of every continuation key to head.
// Chains are followed recursively. Cycles are not detected.
func (t *Table) resolvePointers(ctx context.Context, key string, head model.Value, pointers []string) (model.Value, error) {
	if len(pointers) == 0 {
		return head, nil
	}
	parts := make([]model.Value, 0, len(pointers)+1)
	parts = append(parts, head)
	for _, p := range pointers {
		if err := ctx.Err(); err != nil {
			return model.Value{}, err
		}
		pv, ok, err := t.get(ctx, p)
		if err != nil {
			return model.Value{}, err
		}
		if !ok {
			return model.Value{}, fmt.Errorf("%w: %q points to missing key %q", ErrInvalidPointerChain, key, p)
		}
		parts = append(parts, pv)
	}
	v, err := model.ConcatAll(parts...)
	if err != nil {
		return model.Value{}, fmt.Errorf("%w: %q: %w", ErrInvalidPointerChain, key, err)
	}
	return v, nil
}

// Exists reports whether key has a metadata record. Nothing is decoded.
func (t *Table) Exists(ctx context.Context, key string, opts ...RecordOption) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	key, _ = applyRecordOptions(key, opts)
	ok, err := t.store.Exists(ctx, t.indexKey(key))
	return ok, translateError(err)
}

// BatchedGet reads many keys of one type in a single pass over the log.
//
// Every key must exist (*KeyNotFoundError otherwise) and all records must
// share one type tag (ErrHeterogeneousBatch otherwise). Payloads are read in
// offset order and returned in input order.
func (t *Table) BatchedGet(ctx context.Context, keys []string) (vals []model.Value, err error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { t.metrics.RecordBatchGet(len(keys), time.Since(start), err) }()

	if len(keys) == 0 {
		return []model.Value{}, nil
	}

	metas := make([]index.Metadata, len(keys))
	for i, k := range keys {
		m, ok, err := t.store.Get(ctx, t.indexKey(k))
		if err != nil {
			return nil, translateError(err)
		}
		if !ok {
			return nil, &KeyNotFoundError{Key: k}
		}
		if i > 0 && m.Type != metas[0].Type {
			return nil, fmt.Errorf("%w: %q is %s, %q is %s",
				ErrHeterogeneousBatch, keys[0], metas[0].Type, k, m.Type)
		}
		metas[i] = m
	}

	ranges := make([]vlog.Range, len(metas))
	args := make([]json.RawMessage, len(metas))
	for i, m := range metas {
		ranges[i] = vlog.Range{Offset: m.Offset, Length: m.Length}
		args[i] = m.Args
	}
	payloads, err := t.log.ReadMany(ranges)
	if err != nil {
		return nil, translateError(err)
	}
	vals, err = t.registry.DecodeBatch(metas[0].Type, payloads, args)
	if err != nil {
		return nil, err
	}

	for i, m := range metas {
		if len(m.Pointers) == 0 {
			continue
		}
		if vals[i], err = t.resolvePointers(ctx, keys[i], vals[i], m.Pointers); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

// AddPointer appends pointerKey to the continuation list of key.
//
// It is a no-op when both keys are equal. Callers must not create cycles:
// Get follows chains without cycle detection and would not terminate.
func (t *Table) AddPointer(ctx context.Context, key, pointerKey string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.addPointer(ctx, key, pointerKey)
}

func (t *Table) addPointer(ctx context.Context, key, pointerKey string) error {
	if key == pointerKey {
		return nil
	}
	m, ok, err := t.store.Get(ctx, t.indexKey(key))
	if err != nil {
		return translateError(err)
	}
	if !ok {
		return &KeyNotFoundError{Key: key}
	}
	m.Pointers = append(m.Pointers, pointerKey)
	return translateError(t.store.Set(ctx, t.indexKey(key), m))
}

// Append adds value to the pending list for key and flushes the pending
// values as one record once threshold values are buffered.
//
// Pending values are in memory only: they are invisible to Get and lost
// unless Flush or Close runs.
func (t *Table) Append(ctx context.Context, key string, value model.Value, threshold int) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.buffers.append(ctx, key, value, threshold)
}

// Flush persists every pending Append buffer.
func (t *Table) Flush(ctx context.Context) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.buffers.flushAll(ctx)
}

// SAdd adds member to the string set stored under key.
func (t *Table) SAdd(ctx context.Context, key, member string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return translateError(t.store.SetAdd(ctx, t.indexKey(key), member))
}

// Members returns the sorted members of the set under key.
func (t *Table) Members(ctx context.Context, key string) ([]string, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	members, err := t.store.SetMembers(ctx, t.indexKey(key))
	return members, translateError(err)
}

// DeleteTable removes every index key of the table and recreates an empty
// log. Pending Append buffers are discarded. This cannot be undone.
func (t *Table) DeleteTable(ctx context.Context) (err error) {
	if err := t.checkOpen(); err != nil {
		return err
	}
	defer func() { t.logger.LogReset(ctx, err) }()

	t.buffers.discard()
	if err := t.store.DeletePrefix(ctx, t.name+"/"); err != nil {
		return translateError(err)
	}
	return translateError(t.log.Reset())
}

// Close flushes pending Append buffers and closes the log, plus the index
// store when the table created it. Close is idempotent.
func (t *Table) Close(ctx context.Context) error {
	if t == nil || t.closed.Load() {
		return nil
	}
	var errs []error
	if err := t.buffers.flushAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if !t.closed.CompareAndSwap(false, true) {
		return errors.Join(errs...)
	}
	if err := t.log.Close(); err != nil {
		errs = append(errs, err)
	}
	if t.ownsStore {
		if err := t.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.logger.InfoContext(ctx, "table closed")
	return errors.Join(errs...)
}
