package codec

import (
	"encoding/binary"
	"encoding/json"
	"math"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/vlogdb/model"
)

// List representations recorded in codec arguments.
const (
	ReprInt32 = "int32"
	ReprInt64 = "int64"
	ReprBytes = "bytes"
	ReprJSON  = "json"
)

type listArgs struct {
	Repr string `json:"repr"`
}

// ListCodec packs integer lists as fixed-width little-endian words, string
// lists as uvarint length-prefixed byte strings, and every other list as
// structured JSON.
//
// The representation is chosen by looking at all elements. A list is packed
// only when every element is an integer; int32 is used when every element fits,
// int64 otherwise. A list of only strings keeps its bytes exactly, including
// invalid UTF-8. The empty list is packed as int32.
type ListCodec struct{}

func (ListCodec) Kinds() []model.Kind    { return []model.Kind{model.KindList} }
func (ListCodec) Tags() []model.TypeTag { return []model.TypeTag{model.TagList} }

func (ListCodec) Encode(v model.Value) ([]byte, model.TypeTag, json.RawMessage, error) {
	repr := chooseRepr(v.L)

	var payload []byte
	switch repr {
	case ReprInt32:
		payload = make([]byte, 4*len(v.L))
		for i, e := range v.L {
			binary.LittleEndian.PutUint32(payload[4*i:], uint32(int32(e.I64)))
		}
	case ReprInt64:
		payload = make([]byte, 8*len(v.L))
		for i, e := range v.L {
			binary.LittleEndian.PutUint64(payload[8*i:], uint64(e.I64))
		}
	case ReprBytes:
		n := 0
		for _, e := range v.L {
			n += binary.MaxVarintLen64 + len(e.S)
		}
		payload = make([]byte, 0, n)
		for _, e := range v.L {
			payload = binary.AppendUvarint(payload, uint64(len(e.S)))
			payload = append(payload, e.S...)
		}
	default:
		var err error
		if payload, err = appendStructured(nil, v); err != nil {
			return nil, 0, nil, err
		}
	}

	args, err := gojson.Marshal(listArgs{Repr: repr})
	if err != nil {
		return nil, 0, nil, err
	}
	return payload, model.TagList, args, nil
}

func chooseRepr(l []model.Value) string {
	if len(l) > 0 && allStrings(l) {
		return ReprBytes
	}
	repr := ReprInt32
	for _, e := range l {
		if e.Kind != model.KindInt {
			return ReprJSON
		}
		if e.I64 < math.MinInt32 || e.I64 > math.MaxInt32 {
			repr = ReprInt64
		}
	}
	return repr
}

func allStrings(l []model.Value) bool {
	for _, e := range l {
		if e.Kind != model.KindString {
			return false
		}
	}
	return true
}

func decodeBytesList(payload []byte) (model.Value, error) {
	l := []model.Value{}
	for len(payload) > 0 {
		n, w := binary.Uvarint(payload)
		if w <= 0 || n > uint64(len(payload)-w) {
			return model.Value{}, corrupt("bytes list element at %d", len(l))
		}
		payload = payload[w:]
		l = append(l, model.Bytes(payload[:n]))
		payload = payload[n:]
	}
	return model.List(l), nil
}

func (ListCodec) Decode(_ model.TypeTag, payload []byte, args json.RawMessage) (model.Value, error) {
	var a listArgs
	if len(args) == 0 || gojson.Unmarshal(args, &a) != nil {
		return model.Value{}, corrupt("list arguments %q", args)
	}

	switch a.Repr {
	case ReprInt32:
		if len(payload)%4 != 0 {
			return model.Value{}, corrupt("int32 list payload of %d bytes", len(payload))
		}
		l := make([]model.Value, len(payload)/4)
		for i := range l {
			l[i] = model.Int(int64(int32(binary.LittleEndian.Uint32(payload[4*i:]))))
		}
		return model.List(l), nil
	case ReprInt64:
		if len(payload)%8 != 0 {
			return model.Value{}, corrupt("int64 list payload of %d bytes", len(payload))
		}
		l := make([]model.Value, len(payload)/8)
		for i := range l {
			l[i] = model.Int(int64(binary.LittleEndian.Uint64(payload[8*i:])))
		}
		return model.List(l), nil
	case ReprBytes:
		return decodeBytesList(payload)
	case ReprJSON:
		v, err := parseStructured(payload)
		if err != nil {
			return model.Value{}, err
		}
		if v.Kind != model.KindList {
			return model.Value{}, corrupt("list payload decoded as %s", v.Kind)
		}
		return v, nil
	default:
		return model.Value{}, corrupt("unknown list representation %q", a.Repr)
	}
}

// DictCodec stores dicts as ordered JSON objects.
type DictCodec struct{}

func (DictCodec) Kinds() []model.Kind    { return []model.Kind{model.KindDict} }
func (DictCodec) Tags() []model.TypeTag { return []model.TypeTag{model.TagDict} }

func (DictCodec) Encode(v model.Value) ([]byte, model.TypeTag, json.RawMessage, error) {
	payload, err := appendStructured(nil, model.DictValue(v.D))
	if err != nil {
		return nil, 0, nil, err
	}
	return payload, model.TagDict, nil, nil
}

func (DictCodec) Decode(_ model.TypeTag, payload []byte, _ json.RawMessage) (model.Value, error) {
	v, err := parseStructured(payload)
	if err != nil {
		return model.Value{}, err
	}
	if v.Kind != model.KindDict {
		return model.Value{}, corrupt("dict payload decoded as %s", v.Kind)
	}
	return v, nil
}
