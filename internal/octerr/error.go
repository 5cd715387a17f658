// Package octerr defines the failure taxonomy shared by every layer of the bridge.
//
// Callers classify a failure purely by its Kind: a script bug (KindEval) is
// recoverable, a dead bridge (KindIO) requires Destroy, a wrong requested type
// (KindCast) is local to the call.
package octerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates failure categories.
type Kind uint8

const (
	// KindIO is a transport failure: broken pipe, unexpected stream closure,
	// non-zero exit code. Always fatal to the session.
	KindIO Kind = iota + 1
	// KindParse is a wire decoding failure. The interpreter is uninjured.
	KindParse
	// KindEval is a script error captured by safe evaluation.
	KindEval
	// KindCast is a requested-variant mismatch on a typed read.
	KindCast
	// KindUsage is a local API misuse: bad coordinates, rank mismatch, bad name.
	KindUsage
	// KindEncode means a value variant has no registered encoder.
	KindEncode
	// KindState is an operation attempted in a state that does not allow it.
	KindState
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindEval:
		return "eval"
	case KindCast:
		return "cast"
	case KindUsage:
		return "usage"
	case KindEncode:
		return "encode"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is the single structured error type of the bridge.
type Error struct {
	Kind      Kind
	Op        string // operation that failed, e.g. "exchange", "get"
	Msg       string
	Destroyed bool  // the session was destroyed while (or before) the call ran
	Value     any   // for KindCast: the value actually read
	Coords    []int // for KindUsage on indexing
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	switch e.Kind {
	case KindIO:
		if e.Destroyed {
			sb.WriteString("interpreter destroyed: ")
		} else {
			sb.WriteString("interpreter i/o: ")
		}
	case KindParse:
		sb.WriteString("parse: ")
	case KindEval:
		sb.WriteString("evaluation failed: ")
	case KindCast:
		sb.WriteString("type mismatch: ")
	case KindUsage:
		sb.WriteString("usage: ")
	case KindEncode:
		sb.WriteString("no encoder: ")
	case KindState:
		sb.WriteString("invalid state: ")
	}
	sb.WriteString(e.Msg)
	if len(e.Coords) > 0 {
		sb.WriteString(fmt.Sprintf(" at %v", e.Coords))
	}
	if e.Err != nil {
		if e.Msg != "" {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Recoverable reports whether the interpreter stays usable after this failure.
func (e *Error) Recoverable() bool {
	if e == nil {
		return true
	}
	switch e.Kind {
	case KindIO, KindState:
		return false
	default:
		return !e.Destroyed
	}
}

// IO returns a transport failure.
func IO(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindIO, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Parse returns a wire decoding failure.
func Parse(format string, args ...any) *Error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf(format, args...)}
}

// Eval returns a captured script failure.
func Eval(msg string) *Error {
	return &Error{Kind: KindEval, Op: "eval", Msg: msg}
}

// Cast returns a classification failure carrying the actual value.
func Cast(v any, want string) *Error {
	return &Error{Kind: KindCast, Op: "get", Msg: fmt.Sprintf("value is %T, not %s", v, want), Value: v}
}

// Usage returns a local API misuse failure.
func Usage(coords []int, format string, args ...any) *Error {
	var c []int
	if len(coords) > 0 {
		c = append([]int(nil), coords...)
	}
	return &Error{Kind: KindUsage, Msg: fmt.Sprintf(format, args...), Coords: c}
}

// Encode returns a missing-encoder failure.
func Encode(format string, args ...any) *Error {
	return &Error{Kind: KindEncode, Op: "encode", Msg: fmt.Sprintf(format, args...)}
}

// State returns an invalid-state failure.
func State(op string, destroyed bool, format string, args ...any) *Error {
	return &Error{Kind: KindState, Op: op, Destroyed: destroyed, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Recoverable reports whether the session survives err. Errors outside the
// taxonomy are treated as transport failures.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}

// IsDestroyed reports whether err was caused by destroying the session.
func IsDestroyed(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Destroyed
	}
	return false
}

// MarkDestroyed tags err as caused by a destroy. Errors outside the taxonomy
// become KindIO.
func MarkDestroyed(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Destroyed = true
		return &cp
	}
	return &Error{Kind: KindIO, Destroyed: true, Err: err}
}
