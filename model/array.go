package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"unsafe"
)

// DType identifies the element type of an Array. The numeric ids are
// persisted and must stay stable.
type DType uint8

const (
	DTypeInvalid DType = 0
	DTypeInt8    DType = 1
	DTypeInt16   DType = 2
	DTypeInt32   DType = 3
	DTypeInt64   DType = 4
	DTypeUint8   DType = 5
	DTypeUint16  DType = 6
	DTypeUint32  DType = 7
	DTypeUint64  DType = 8
	DTypeFloat32 DType = 9
	DTypeFloat64 DType = 10
)

// Size returns the element width in bytes, or 0 for an unknown dtype.
func (d DType) Size() int {
	switch d {
	case DTypeInt8, DTypeUint8:
		return 1
	case DTypeInt16, DTypeUint16:
		return 2
	case DTypeInt32, DTypeUint32, DTypeFloat32:
		return 4
	case DTypeInt64, DTypeUint64, DTypeFloat64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is a known dtype.
func (d DType) Valid() bool { return d.Size() > 0 }

func (d DType) String() string {
	switch d {
	case DTypeInt8:
		return "int8"
	case DTypeInt16:
		return "int16"
	case DTypeInt32:
		return "int32"
	case DTypeInt64:
		return "int64"
	case DTypeUint8:
		return "uint8"
	case DTypeUint16:
		return "uint16"
	case DTypeUint32:
		return "uint32"
	case DTypeUint64:
		return "uint64"
	case DTypeFloat32:
		return "float32"
	case DTypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Number is the set of element types an Array can hold.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// DTypeOf returns the dtype for T.
func DTypeOf[T Number]() DType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return DTypeInt8
	case int16:
		return DTypeInt16
	case int32:
		return DTypeInt32
	case int64:
		return DTypeInt64
	case uint8:
		return DTypeUint8
	case uint16:
		return DTypeUint16
	case uint32:
		return DTypeUint32
	case uint64:
		return DTypeUint64
	case float32:
		return DTypeFloat32
	case float64:
		return DTypeFloat64
	}
	return DTypeInvalid
}

var (
	// ErrShapeMismatch is returned when shape and buffer size disagree.
	ErrShapeMismatch = errors.New("array shape does not match buffer size")
	// ErrInvalidDType is returned for unknown dtypes or mismatched views.
	ErrInvalidDType = errors.New("invalid array dtype")
)

// Array is a dense row-major numeric array backed by a native-endian buffer.
type Array struct {
	dtype DType
	shape []int
	data  []byte
}

// NewArray wraps data as an array of the given dtype and shape.
//
// data is not copied. An empty shape describes a scalar.
func NewArray(dtype DType, shape []int, data []byte) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDType, dtype)
	}
	n, err := elementCount(shape)
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt/dtype.Size() || n*dtype.Size() != len(data) {
		return nil, fmt.Errorf("%w: shape %v of %s needs %d bytes, have %d",
			ErrShapeMismatch, shape, dtype, n*dtype.Size(), len(data))
	}
	return &Array{dtype: dtype, shape: slices.Clone(shape), data: data}, nil
}

// ArrayOf wraps a typed slice as an array. Without a shape the array is
// one-dimensional. The slice memory is shared, not copied.
func ArrayOf[T Number](values []T, shape ...int) (*Array, error) {
	if len(shape) == 0 {
		shape = []int{len(values)}
	}
	var raw []byte
	if len(values) > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*int(unsafe.Sizeof(values[0])))
	} else {
		raw = []byte{}
	}
	return NewArray(DTypeOf[T](), shape, raw)
}

// View returns the array elements as a typed slice.
//
// The buffer is reinterpreted in place when it is suitably aligned and copied
// otherwise. The dtype must match T.
func View[T Number](a *Array) ([]T, error) {
	if want := DTypeOf[T](); a.dtype != want {
		return nil, fmt.Errorf("%w: array is %s, view is %s", ErrInvalidDType, a.dtype, want)
	}
	n := a.Len()
	if n == 0 {
		return []T{}, nil
	}
	var zero T
	align := unsafe.Alignof(zero)
	if uintptr(unsafe.Pointer(&a.data[0]))%align == 0 {
		return unsafe.Slice((*T)(unsafe.Pointer(&a.data[0])), n), nil
	}
	out := make([]T, n)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(a.data)), a.data)
	return out, nil
}

func elementCount(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v overflows", ErrShapeMismatch, shape)
		}
		n *= d
	}
	return n, nil
}

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the dimensions.
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Len returns the total number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.data) / a.dtype.Size()
}

// Bytes returns the raw native-endian buffer. It is shared with the array.
func (a *Array) Bytes() []byte { return a.data }

// Equal reports whether both arrays have the same dtype, shape and bytes.
func (a *Array) Equal(o *Array) bool {
	if a == nil || o == nil {
		return a == o
	}
	return a.dtype == o.dtype && slices.Equal(a.shape, o.shape) && bytes.Equal(a.data, o.data)
}

func (a *Array) String() string {
	return fmt.Sprintf("array(%s, shape=%v)", a.dtype, a.shape)
}
