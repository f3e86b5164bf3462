package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/vlogdb/model"
)

var (
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("index store closed")
	// ErrInvalidMetadata is returned when persisted fields cannot be parsed.
	ErrInvalidMetadata = errors.New("invalid metadata record")
)

// Field names of the persisted metadata shape.
const (
	FieldOffset   = "offset"
	FieldLength   = "length"
	FieldType     = "type"
	FieldPointers = "pointers"
	FieldArgs     = "args"
)

// Metadata locates one encoded payload in the value log.
//
// Offset, Length, Type and Args are fixed when the record is created. Only
// Pointers grows afterwards.
type Metadata struct {
	Offset   uint64
	Length   uint64
	Type     model.TypeTag
	Pointers []string
	Args     json.RawMessage
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	m.Pointers = slices.Clone(m.Pointers)
	m.Args = slices.Clone(m.Args)
	return m
}

// End returns the first log offset after the payload.
func (m Metadata) End() uint64 { return m.Offset + m.Length }

// Fields returns the persisted string form of m.
//
// Numbers are decimal. Pointers is a compact JSON array and Args a compact
// JSON value, "null" when absent.
func (m Metadata) Fields() (map[string]string, error) {
	ptrs := m.Pointers
	if ptrs == nil {
		ptrs = []string{}
	}
	pj, err := gojson.Marshal(ptrs)
	if err != nil {
		return nil, err
	}

	args := "null"
	if len(m.Args) > 0 {
		var buf bytes.Buffer
		if err := gojson.Compact(&buf, m.Args); err != nil {
			return nil, fmt.Errorf("%w: args: %v", ErrInvalidMetadata, err)
		}
		args = buf.String()
	}

	return map[string]string{
		FieldOffset:   strconv.FormatUint(m.Offset, 10),
		FieldLength:   strconv.FormatUint(m.Length, 10),
		FieldType:     strconv.FormatUint(uint64(m.Type), 10),
		FieldPointers: string(pj),
		FieldArgs:     args,
	}, nil
}

// MetadataFromFields parses the persisted string form produced by Fields.
func MetadataFromFields(f map[string]string) (Metadata, error) {
	var m Metadata
	var err error

	if m.Offset, err = strconv.ParseUint(f[FieldOffset], 10, 64); err != nil {
		return Metadata{}, fmt.Errorf("%w: offset %q", ErrInvalidMetadata, f[FieldOffset])
	}
	if m.Length, err = strconv.ParseUint(f[FieldLength], 10, 64); err != nil {
		return Metadata{}, fmt.Errorf("%w: length %q", ErrInvalidMetadata, f[FieldLength])
	}
	tag, err := strconv.ParseUint(f[FieldType], 10, 8)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: type %q", ErrInvalidMetadata, f[FieldType])
	}
	m.Type = model.TypeTag(tag)

	if p := f[FieldPointers]; p != "" {
		if err := gojson.Unmarshal([]byte(p), &m.Pointers); err != nil {
			return Metadata{}, fmt.Errorf("%w: pointers %q", ErrInvalidMetadata, p)
		}
		if len(m.Pointers) == 0 {
			m.Pointers = nil
		}
	}

	if a := f[FieldArgs]; a != "" && a != "null" {
		if !gojson.Valid([]byte(a)) {
			return Metadata{}, fmt.Errorf("%w: args %q", ErrInvalidMetadata, a)
		}
		m.Args = json.RawMessage(a)
	}
	return m, nil
}

// Store is the metadata index.
type Store interface {
	// Get returns the record stored under key. ok is false when absent.
	Get(ctx context.Context, key string) (m Metadata, ok bool, err error)
	// Set stores m under key, replacing any previous record.
	Set(ctx context.Context, key string, m Metadata) error
	// Exists reports whether a record is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// SetAdd adds member to the set stored under key.
	SetAdd(ctx context.Context, key, member string) error
	// SetMembers returns the members of the set under key, sorted.
	SetMembers(ctx context.Context, key string) ([]string, error)
	// ScanPrefix lazily yields every record or set key starting with prefix.
	ScanPrefix(ctx context.Context, prefix string) iter.Seq2[string, error]
	// DeletePrefix removes every record and set whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// FlushAll removes everything.
	FlushAll(ctx context.Context) error
	// Close releases the store.
	Close() error
}

// PrefixEnd returns the smallest string greater than every string with the
// given prefix, or "" if no such bound exists.
func PrefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
