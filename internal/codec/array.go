package codec

import (
	"encoding/json"
	"errors"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/vlogdb/model"
)

type arrayArgs struct {
	DType model.DType `json:"dtype"`
	Shape []int       `json:"shape"`
}

// ArrayCodec stores the flattened array buffer verbatim. Dtype and shape are
// kept in the arguments.
type ArrayCodec struct{}

func (ArrayCodec) Kinds() []model.Kind    { return []model.Kind{model.KindArray} }
func (ArrayCodec) Tags() []model.TypeTag { return []model.TypeTag{model.TagArray} }

func (ArrayCodec) Encode(v model.Value) ([]byte, model.TypeTag, json.RawMessage, error) {
	if v.A == nil {
		return nil, 0, nil, errors.New("codec: nil array")
	}
	shape := v.A.Shape()
	if shape == nil {
		shape = []int{}
	}
	args, err := gojson.Marshal(arrayArgs{DType: v.A.DType(), Shape: shape})
	if err != nil {
		return nil, 0, nil, err
	}
	return v.A.Bytes(), model.TagArray, args, nil
}

func (ArrayCodec) Decode(_ model.TypeTag, payload []byte, args json.RawMessage) (model.Value, error) {
	var a arrayArgs
	if len(args) == 0 || gojson.Unmarshal(args, &a) != nil || a.Shape == nil {
		return model.Value{}, corrupt("array arguments %q", args)
	}
	arr, err := model.NewArray(a.DType, a.Shape, payload)
	if err != nil {
		return model.Value{}, corrupt("%v", err)
	}
	return model.ArrayValue(arr), nil
}
