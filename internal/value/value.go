// Package value holds the in-memory representation of the values exchanged
// with the interpreter.
//
// Every matrix-like variant is built on the generic Array, which owns the
// shape, the column-major storage and the grow-only resize. Public
// coordinates are 1-based; offsets into storage are 0-based.
package value

// Kind identifies a host-side value variant. The codec registry keys its
// encoder table on it.
type Kind uint8

const (
	KindMatrix Kind = iota + 1
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindComplex
	KindText
	KindCell
	KindStruct
	KindSparseBool
	KindFunctionHandle
	KindRange
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindMatrix:
		return "matrix"
	case KindBool:
		return "bool matrix"
	case KindInt8:
		return "int8 matrix"
	case KindInt16:
		return "int16 matrix"
	case KindInt32:
		return "int32 matrix"
	case KindInt64:
		return "int64 matrix"
	case KindUint8:
		return "uint8 matrix"
	case KindUint16:
		return "uint16 matrix"
	case KindUint32:
		return "uint32 matrix"
	case KindComplex:
		return "complex matrix"
	case KindText:
		return "text"
	case KindCell:
		return "cell"
	case KindStruct:
		return "struct"
	case KindSparseBool:
		return "sparse bool matrix"
	case KindFunctionHandle:
		return "function handle"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// Value is any unit that can be encoded for or decoded from the interpreter.
type Value interface {
	Kind() Kind
	// Equal reports structural equality. Floating point elements compare
	// with ==, so NaN never equals NaN.
	Equal(other Value) bool
	// Clone returns a copy that shares no mutable state with the receiver.
	Clone() Value
}
