// Package codec maps between Values and the interpreter's "save -text"
// format.
//
// A record starts with "# type: <tag>". The Registry resolves the tag to a
// Decoder, which consumes exactly the rest of the record. Encoding is keyed
// on the value's Kind instead; the Encoder writes the type line itself
// because the tag can depend on the shape (a 1×1 Matrix is a "scalar").
package codec

import (
	"maps"
	"strings"

	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

const (
	typePrefix   = "# type: "
	namePrefix   = "# name: "
	globalPrefix = "global "

	// CellElementName names every element record nested in a cell.
	CellElementName = "<cell-element>"

	createdByPrefix = "# Created by Octave"
)

// Decoder reads one record positioned right after its type line.
type Decoder func(reg *Registry, r *Reader) (value.Value, error)

// Encoder writes one record, type line included.
type Encoder func(reg *Registry, w *Writer, v value.Value) error

// Registry holds one decoder per tag and one encoder per value kind. It is
// immutable once built.
type Registry struct {
	decoders map[string]Decoder
	encoders map[value.Kind]Encoder
}

var defaultRegistry = newDefault()

// Default returns the registry covering every supported value kind.
func Default() *Registry { return defaultRegistry }

func newDefault() *Registry {
	reg := &Registry{
		decoders: map[string]Decoder{
			"scalar":             decodeScalar,
			"matrix":             decodeMatrix,
			"bool":               decodeBool,
			"bool matrix":        decodeBoolMatrix,
			"complex scalar":     decodeComplexScalar,
			"complex matrix":     decodeComplexMatrix,
			"string":             decodeText,
			"sq_string":          decodeText,
			"cell":               decodeCell,
			"struct":             decodeStruct,
			"scalar struct":      decodeScalarStruct,
			"sparse bool matrix": decodeSparseBool,
			"range":              rangeDecoder("range"),
			"double_range":       rangeDecoder("double_range"),
		},
		encoders: map[value.Kind]Encoder{
			value.KindMatrix:         encodeMatrix,
			value.KindBool:           encodeBoolMatrix,
			value.KindComplex:        encodeComplexMatrix,
			value.KindText:           encodeText,
			value.KindCell:           encodeCell,
			value.KindStruct:         encodeStruct,
			value.KindSparseBool:     encodeSparseBool,
			value.KindFunctionHandle: encodeFunctionHandle,
			value.KindRange:          encodeRange,
		},
	}
	registerInt[int8](reg)
	registerInt[int16](reg)
	registerInt[int32](reg)
	registerInt[int64](reg)
	registerInt[uint8](reg)
	registerInt[uint16](reg)
	registerInt[uint32](reg)
	return reg
}

// DecoderFor returns the decoder for a wire tag.
func (reg *Registry) DecoderFor(tag string) (Decoder, bool) {
	d, ok := reg.decoders[tag]
	return d, ok
}

// EncoderFor returns the encoder for a value kind.
func (reg *Registry) EncoderFor(kind value.Kind) (Encoder, bool) {
	e, ok := reg.encoders[kind]
	return e, ok
}

// Without returns a copy of reg that no longer decodes the given tags.
func (reg *Registry) Without(tags ...string) *Registry {
	cp := &Registry{
		decoders: maps.Clone(reg.decoders),
		encoders: maps.Clone(reg.encoders),
	}
	for _, t := range tags {
		delete(cp.decoders, t)
	}
	return cp
}

// Tags returns the number of decodable tags.
func (reg *Registry) Tags() int { return len(reg.decoders) }

// ReadValue reads one full record: the type line and its body.
func (reg *Registry) ReadValue(r *Reader) (value.Value, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	tag, ok := strings.CutPrefix(line, typePrefix)
	if !ok {
		return nil, r.errorf("expected %q, got %q", typePrefix, line)
	}
	tag = strings.TrimPrefix(tag, globalPrefix)
	dec, ok := reg.DecoderFor(tag)
	if !ok {
		return nil, r.errorf("unsupported type %q", tag)
	}
	return dec(reg, r)
}

// WriteValue writes one full record for v.
func (reg *Registry) WriteValue(w *Writer, v value.Value) error {
	if v == nil {
		return octerr.Encode("nil value")
	}
	enc, ok := reg.EncoderFor(v.Kind())
	if !ok {
		return octerr.Encode("value kind %q (%T) has no encoder", v.Kind(), v)
	}
	if err := enc(reg, w, v); err != nil {
		return err
	}
	return w.Err()
}

// ReadNamed reads "# name: <name>" followed by one record.
func (reg *Registry) ReadNamed(r *Reader) (string, value.Value, error) {
	line, err := r.ReadLine()
	if err != nil {
		return "", nil, err
	}
	name, ok := strings.CutPrefix(line, namePrefix)
	if !ok {
		return "", nil, r.errorf("expected %q, got %q", namePrefix, line)
	}
	v, err := reg.ReadValue(r)
	if err != nil {
		return "", nil, err
	}
	return name, v, nil
}

// WriteNamed writes "# name: <name>" followed by the record for v.
func (reg *Registry) WriteNamed(w *Writer, name string, v value.Value) error {
	w.WriteString(namePrefix + name + "\n")
	return reg.WriteValue(w, v)
}

// ReadSaved reads the output of "save -text": an optional creator comment,
// then one named record.
func (reg *Registry) ReadSaved(r *Reader) (string, value.Value, error) {
	if err := r.SkipBlank(); err != nil {
		return "", nil, err
	}
	line, err := r.PeekLine()
	if err == nil && strings.HasPrefix(line, createdByPrefix) {
		_, _ = r.ReadLine()
	}
	return reg.ReadNamed(r)
}

// EndOfBatch terminates a batch of named records fed to load("-text", "-").
func EndOfBatch(w *Writer) {
	w.WriteString(namePrefix + "\n")
}
