package model

import "fmt"

// TypeTag is the persisted numeric identifier of a codec.
//
// Tags are stored in index metadata and must never be renumbered.
type TypeTag uint8

const (
	TagString TypeTag = 0
	TagInt    TypeTag = 1
	TagList   TypeTag = 2
	TagDict   TypeTag = 3
	TagArray  TypeTag = 4
)

func (t TypeTag) String() string {
	switch t {
	case TagString:
		return "string"
	case TagInt:
		return "int"
	case TagList:
		return "list"
	case TagDict:
		return "dict"
	case TagArray:
		return "array"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}
