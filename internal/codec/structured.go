package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/vlogdb/model"
)

// appendStructured writes v as JSON. Dict keys keep insertion order and floats
// always carry a fraction or exponent so they decode back as floats. Strings
// must be valid UTF-8 since JSON cannot carry arbitrary bytes.
func appendStructured(buf []byte, v model.Value) ([]byte, error) {
	switch v.Kind {
	case model.KindString:
		return appendJSONString(buf, v.S)
	case model.KindInt:
		return strconv.AppendInt(buf, v.I64, 10), nil
	case model.KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedType, v.F64)
		}
		start := len(buf)
		buf = strconv.AppendFloat(buf, v.F64, 'g', -1, 64)
		if !bytes.ContainsAny(buf[start:], ".eE") {
			buf = append(buf, '.', '0')
		}
		return buf, nil
	case model.KindList:
		buf = append(buf, '[')
		for i, e := range v.L {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = appendStructured(buf, e); err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case model.KindDict:
		buf = append(buf, '{')
		i := 0
		for k, e := range v.D.All() {
			if i > 0 {
				buf = append(buf, ',')
			}
			i++
			var err error
			if buf, err = appendJSONString(buf, k); err != nil {
				return nil, err
			}
			buf = append(buf, ':')
			if buf, err = appendStructured(buf, e); err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("%w: %s inside a structured value", ErrUnsupportedType, v.Kind)
	}
}

func appendJSONString(buf []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: invalid UTF-8 string %q inside a structured value", ErrUnsupportedType, s)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(buf, b...), nil
}

// parseStructured decodes one JSON value produced by appendStructured.
func parseStructured(payload []byte) (model.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return model.Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return model.Value{}, corrupt("trailing data after structured value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (model.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return model.Value{}, corrupt("structured payload: %v", err)
	}
	switch t := tok.(type) {
	case string:
		return model.String(t), nil
	case json.Number:
		return parseNumber(t)
	case json.Delim:
		switch t {
		case '[':
			l := []model.Value{}
			for dec.More() {
				e, err := parseValue(dec)
				if err != nil {
					return model.Value{}, err
				}
				l = append(l, e)
			}
			if _, err := dec.Token(); err != nil {
				return model.Value{}, corrupt("structured payload: %v", err)
			}
			return model.List(l), nil
		case '{':
			d := model.NewDict()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return model.Value{}, corrupt("structured payload: %v", err)
				}
				k, ok := kt.(string)
				if !ok {
					return model.Value{}, corrupt("object key %v", kt)
				}
				e, err := parseValue(dec)
				if err != nil {
					return model.Value{}, err
				}
				d.Set(k, e)
			}
			if _, err := dec.Token(); err != nil {
				return model.Value{}, corrupt("structured payload: %v", err)
			}
			return model.DictValue(d), nil
		}
	}
	return model.Value{}, corrupt("unexpected token %v", tok)
}

func parseNumber(n json.Number) (model.Value, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Value{}, corrupt("float %q", s)
		}
		return model.Float(f), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return model.Value{}, corrupt("integer %q", s)
	}
	return model.Int(i), nil
}
