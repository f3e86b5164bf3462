package codec

import (
	"encoding/json"
	"strconv"

	"github.com/hupe1980/vlogdb/model"
)

// StringCodec stores strings and byte strings verbatim.
type StringCodec struct{}

func (StringCodec) Kinds() []model.Kind    { return []model.Kind{model.KindString} }
func (StringCodec) Tags() []model.TypeTag { return []model.TypeTag{model.TagString} }

func (StringCodec) Encode(v model.Value) ([]byte, model.TypeTag, json.RawMessage, error) {
	return []byte(v.S), model.TagString, nil, nil
}

func (StringCodec) Decode(_ model.TypeTag, payload []byte, _ json.RawMessage) (model.Value, error) {
	return model.Bytes(payload), nil
}

// DecodeBatch converts all payloads in a single allocation.
func (StringCodec) DecodeBatch(_ model.TypeTag, payloads [][]byte, _ []json.RawMessage) ([]model.Value, error) {
	total := 0
	for _, p := range payloads {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range payloads {
		buf = append(buf, p...)
	}
	all := string(buf)

	out := make([]model.Value, len(payloads))
	pos := 0
	for i, p := range payloads {
		out[i] = model.String(all[pos : pos+len(p)])
		pos += len(p)
	}
	return out, nil
}

// IntCodec stores integers as decimal ASCII.
type IntCodec struct{}

func (IntCodec) Kinds() []model.Kind    { return []model.Kind{model.KindInt} }
func (IntCodec) Tags() []model.TypeTag { return []model.TypeTag{model.TagInt} }

func (IntCodec) Encode(v model.Value) ([]byte, model.TypeTag, json.RawMessage, error) {
	return strconv.AppendInt(nil, v.I64, 10), model.TagInt, nil, nil
}

func (IntCodec) Decode(_ model.TypeTag, payload []byte, _ json.RawMessage) (model.Value, error) {
	n, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return model.Value{}, corrupt("integer payload %q", payload)
	}
	return model.Int(n), nil
}
