package vlogdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vlogdb/model"
)

// pointerInfix separates a key from the id of one of its continuation records.
const pointerInfix = "/~ptr/"

// appendBuffer accumulates Append calls per key and turns every full buffer
// into one list record chained to the key.
//
// The mutex is held across a flush so two flushes of one key cannot both
// claim the primary record.
type appendBuffer struct {
	mu      sync.Mutex
	t       *Table
	pending map[string][]model.Value
}

func newAppendBuffer(t *Table) *appendBuffer {
	return &appendBuffer{t: t, pending: make(map[string][]model.Value)}
}

func (b *appendBuffer) append(ctx context.Context, key string, v model.Value, threshold int) error {
	if threshold < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[key] = append(b.pending[key], v)
	if len(b.pending[key]) < threshold {
		return nil
	}
	return b.flushLocked(ctx, key)
}

// flushAll flushes every non-empty buffer in key order. It keeps going after
// a failure and reports all errors.
func (b *appendBuffer) flushAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.pending))
	for k := range b.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if err := b.flushLocked(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flushLocked writes the buffered values for key. On failure the values stay
// buffered so a later flush can retry; a continuation record written before
// the failure is left unreferenced.
func (b *appendBuffer) flushLocked(ctx context.Context, key string) (err error) {
	vals := b.pending[key]
	if len(vals) == 0 {
		delete(b.pending, key)
		return nil
	}

	start := time.Now()
	pointerKey := ""
	defer func() {
		b.t.metrics.RecordFlush(len(vals), time.Since(start), err)
		b.t.logger.LogFlush(ctx, key, pointerKey, len(vals), err)
	}()

	exists, err := b.t.store.Exists(ctx, b.t.indexKey(key))
	if err != nil {
		return translateError(err)
	}
	pointerKey = key
	if exists {
		pointerKey = newPointerKey(key)
	}

	if _, err := b.t.set(ctx, pointerKey, model.List(vals)); err != nil {
		return err
	}
	if err := b.t.addPointer(ctx, key, pointerKey); err != nil {
		return err
	}
	delete(b.pending, key)
	return nil
}

// discard drops every pending value.
func (b *appendBuffer) discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.pending)
}

// pendingLen returns the number of buffered values for key.
func (b *appendBuffer) pendingLen(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[key])
}

func newPointerKey(key string) string {
	return key + pointerInfix + uuid.NewString()
}
