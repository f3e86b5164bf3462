package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/vlogdb/model"
)

var (
	// ErrUnsupportedType is returned when no codec owns a value kind or type tag.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrCorruptRecord is returned when a payload disagrees with its arguments.
	ErrCorruptRecord = errors.New("corrupt record")
)

// Codec encodes and decodes one family of value shapes.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Kinds lists the value kinds the codec accepts on write.
	Kinds() []model.Kind
	// Tags lists the type tags the codec decodes.
	Tags() []model.TypeTag
	// Encode returns the payload, the tag to persist and optional arguments.
	Encode(v model.Value) (payload []byte, tag model.TypeTag, args json.RawMessage, err error)
	// Decode rebuilds a value from a payload and its arguments.
	Decode(tag model.TypeTag, payload []byte, args json.RawMessage) (model.Value, error)
}

// BatchDecoder is implemented by codecs that decode many payloads at once.
type BatchDecoder interface {
	DecodeBatch(tag model.TypeTag, payloads [][]byte, args []json.RawMessage) ([]model.Value, error)
}

// Registry dispatches values to codecs by kind and payloads by tag.
//
// A Registry is immutable after construction.
type Registry struct {
	byKind map[model.Kind]Codec
	byTag  map[model.TypeTag]Codec
}

// NewRegistry builds a registry from codecs. Later codecs override earlier ones
// for the same kind or tag.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{
		byKind: make(map[model.Kind]Codec),
		byTag:  make(map[model.TypeTag]Codec),
	}
	for _, c := range codecs {
		for _, k := range c.Kinds() {
			r.byKind[k] = c
		}
		for _, t := range c.Tags() {
			r.byTag[t] = c
		}
	}
	return r
}

// NewDefaultRegistry returns a registry with the five built-in codecs.
func NewDefaultRegistry() *Registry {
	return NewRegistry(StringCodec{}, IntCodec{}, ListCodec{}, DictCodec{}, ArrayCodec{})
}

// ForValue returns the codec that owns v's kind.
func (r *Registry) ForValue(v model.Value) (Codec, error) {
	c, ok := r.byKind[v.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedType, v.Kind)
	}
	return c, nil
}

// ForTag returns the codec that decodes tag.
func (r *Registry) ForTag(tag model.TypeTag) (Codec, error) {
	c, ok := r.byTag[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, tag)
	}
	return c, nil
}

// Encode encodes v with the codec that owns its kind.
func (r *Registry) Encode(v model.Value) ([]byte, model.TypeTag, json.RawMessage, error) {
	c, err := r.ForValue(v)
	if err != nil {
		return nil, 0, nil, err
	}
	return c.Encode(v)
}

// Decode decodes payload with the codec registered for tag.
func (r *Registry) Decode(tag model.TypeTag, payload []byte, args json.RawMessage) (model.Value, error) {
	c, err := r.ForTag(tag)
	if err != nil {
		return model.Value{}, err
	}
	return c.Decode(tag, payload, args)
}

// DecodeBatch decodes payloads sharing one tag. Codecs without a batch path
// are called once per payload.
func (r *Registry) DecodeBatch(tag model.TypeTag, payloads [][]byte, args []json.RawMessage) ([]model.Value, error) {
	if len(args) != len(payloads) {
		return nil, fmt.Errorf("codec: %d payloads but %d argument sets", len(payloads), len(args))
	}
	c, err := r.ForTag(tag)
	if err != nil {
		return nil, err
	}
	if bd, ok := c.(BatchDecoder); ok {
		return bd.DecodeBatch(tag, payloads, args)
	}
	out := make([]model.Value, len(payloads))
	for i, p := range payloads {
		v, err := c.Decode(tag, p, args[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func corrupt(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptRecord, fmt.Sprintf(format, a...))
}
