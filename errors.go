package vlogdb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/internal/codec"
	"github.com/hupe1980/vlogdb/internal/vlog"
)

var (
	// ErrUnsupportedType is returned when no codec handles a value or type tag.
	ErrUnsupportedType = codec.ErrUnsupportedType
	// ErrCorruptRecord is returned when stored bytes disagree with their metadata.
	ErrCorruptRecord = codec.ErrCorruptRecord
	// ErrWriteContention is returned when the log lock is not acquired in time.
	// Callers may retry.
	ErrWriteContention = vlog.ErrWriteContention
	// ErrRecordTooLarge is returned by Set for encoded values over the
	// configured maximum record size.
	ErrRecordTooLarge = vlog.ErrRecordTooLarge

	// ErrHeterogeneousBatch is returned by BatchedGet for keys of mixed types.
	ErrHeterogeneousBatch = errors.New("batched get over mixed types")
	// ErrKeyNotFound is wrapped by KeyNotFoundError.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidPointerChain is returned when continuation records cannot be
	// joined, either because a target is missing or the decoded kinds have
	// no concatenation.
	ErrInvalidPointerChain = errors.New("invalid pointer chain")
	// ErrInvalidThreshold is returned by Append for thresholds below 1.
	ErrInvalidThreshold = errors.New("flush threshold must be at least 1")
	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("table closed")
	// ErrTableNotEmpty is returned by Restore into a table that already holds data.
	ErrTableNotEmpty = vlog.ErrNotEmpty
	// ErrSnapshotNotFound is returned by Restore when no manifest exists.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// KeyNotFoundError reports an operation that required an existing key.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: %q", e.Key)
}

func (e *KeyNotFoundError) Unwrap() error { return ErrKeyNotFound }

// PartialWriteError reports a payload that was appended to the log while the
// metadata write that would reference it failed.
//
// The bytes at Offset stay in the log unreferenced. The original error can be
// accessed via errors.Unwrap.
type PartialWriteError struct {
	Key    string
	Offset uint64
	Length uint64
	cause  error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write of %q: payload at %d+%d not indexed: %v", e.Key, e.Offset, e.Length, e.cause)
}

func (e *PartialWriteError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}
	if errors.Is(err, vlog.ErrClosed) || errors.Is(err, index.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, vlog.ErrOutOfRange) || errors.Is(err, index.ErrInvalidMetadata) {
		return fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return err
}
