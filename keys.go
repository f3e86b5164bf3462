package vlogdb

import (
	"context"
	"iter"
	"strings"
)

// KeyColumn is one user key split into base key and column. Column is empty
// for keys without a "/".
type KeyColumn struct {
	Key    string
	Column string
}

// SplitKey splits a composite key at its last "/".
func SplitKey(composite string) KeyColumn {
	i := strings.LastIndexByte(composite, '/')
	if i < 0 {
		return KeyColumn{Key: composite}
	}
	return KeyColumn{Key: composite[:i], Column: composite[i+1:]}
}

// isInternalKey reports keys the table writes for its own bookkeeping.
func isInternalKey(key string) bool {
	return strings.HasPrefix(key, referencePrefix) ||
		strings.HasSuffix(key, backLinkSuffix) ||
		strings.Contains(key, pointerInfix)
}

// KeyColumnPairs lazily scans the table's keys and yields each as a
// (key, column) pair. Continuation records, reference groups and back-links
// are skipped, which also hides a user column named "reference". The scan is
// not restartable; call again to rescan.
func (t *Table) KeyColumnPairs(ctx context.Context) iter.Seq2[KeyColumn, error] {
	return func(yield func(KeyColumn, error) bool) {
		if err := t.checkOpen(); err != nil {
			yield(KeyColumn{}, err)
			return
		}
		prefix := t.name + "/"
		for k, err := range t.store.ScanPrefix(ctx, prefix) {
			if err != nil {
				yield(KeyColumn{}, translateError(err))
				return
			}
			rel := strings.TrimPrefix(k, prefix)
			if isInternalKey(rel) {
				continue
			}
			if !yield(SplitKey(rel), nil) {
				return
			}
		}
	}
}
