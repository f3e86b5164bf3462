// Package model defines the values a table can store.
//
// # Value
//
// Value is a tagged union over the shapes the engine knows how to encode:
//
//   - String: byte strings, stored verbatim
//   - Int: signed 64-bit integers
//   - List: ordered sequences of Values
//   - Dict: insertion-ordered string-keyed maps of Values
//   - Array: dense multi-dimensional numeric arrays
//
// Float exists only as an element of a List or Dict; the engine has no codec
// for a bare float.
//
// # Constructing Values
//
//	v := model.String("hello")
//	n := model.Int(42)
//	l := model.Ints(3, 5, 6, 7)
//
//	d := model.NewDict()
//	d.Set("name", model.String("ada"))
//	d.Set("score", model.Float(0.5))
//	dv := model.DictValue(d)
//
//	arr, _ := model.ArrayOf([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
//	av := model.ArrayValue(arr)
package model
