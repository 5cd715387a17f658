package value

import (
	"maps"
	"slices"

	"octbridge/internal/octerr"
)

// Struct maps field names to values. Reads and writes copy, so a value taken
// out of a Struct never aliases the one stored in it.
type Struct struct {
	fields map[string]Value
}

// NewStruct returns an empty struct.
func NewStruct() *Struct {
	return &Struct{fields: make(map[string]Value)}
}

// Set stores a copy of v under name.
func (s *Struct) Set(name string, v Value) error {
	if name == "" {
		return octerr.Usage(nil, "struct field name is empty")
	}
	if v == nil {
		return octerr.Usage(nil, "struct field %q is nil", name)
	}
	if s.fields == nil {
		s.fields = make(map[string]Value)
	}
	s.fields[name] = v.Clone()
	return nil
}

// Get returns a copy of the field value.
func (s *Struct) Get(name string) (Value, bool) {
	v, ok := s.fields[name]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Delete removes a field.
func (s *Struct) Delete(name string) { delete(s.fields, name) }

// Keys returns the field names in lexicographic order.
func (s *Struct) Keys() []string {
	return slices.Sorted(maps.Keys(s.fields))
}

// Len returns the number of fields.
func (s *Struct) Len() int { return len(s.fields) }

func (s *Struct) Kind() Kind { return KindStruct }

func (s *Struct) Equal(other Value) bool {
	o, ok := other.(*Struct)
	if !ok || s == nil || o == nil {
		return ok && s == o
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for k, v := range s.fields {
		w, ok := o.fields[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

func (s *Struct) Clone() Value {
	out := &Struct{fields: make(map[string]Value, len(s.fields))}
	for k, v := range s.fields {
		out.fields[k] = v.Clone()
	}
	return out
}
