package value

import (
	"cmp"
	"slices"

	"octbridge/internal/octerr"
)

// Text is an immutable character string.
type Text string

func (t Text) Kind() Kind { return KindText }

func (t Text) Equal(other Value) bool {
	o, ok := other.(Text)
	return ok && o == t
}

func (t Text) Clone() Value { return t }

func (t Text) String() string { return string(t) }

// SparseEntry is a 1-based coordinate holding true in a SparseBool.
type SparseEntry struct {
	Row, Col int
}

// SparseBool is a logical matrix that lists its true entries. Unlisted
// entries are false.
type SparseBool struct {
	rows, cols int
	capacity   int
	entries    []SparseEntry // column-major order, unique
}

// NewSparseBool returns an all-false sparse matrix with room for capacity
// true entries.
func NewSparseBool(rows, cols, capacity int) (*SparseBool, error) {
	if rows < 0 || cols < 0 || capacity < 0 {
		return nil, octerr.Usage([]int{rows, cols}, "negative sparse extent or capacity %d", capacity)
	}
	return &SparseBool{rows: rows, cols: cols, capacity: capacity}, nil
}

// Rows returns the row extent.
func (s *SparseBool) Rows() int { return s.rows }

// Cols returns the column extent.
func (s *SparseBool) Cols() int { return s.cols }

// Capacity returns the declared non-zero capacity.
func (s *SparseBool) Capacity() int { return s.capacity }

// NNZ returns the number of true entries.
func (s *SparseBool) NNZ() int { return len(s.entries) }

// Entries returns the true entries in column-major order.
func (s *SparseBool) Entries() []SparseEntry { return slices.Clone(s.entries) }

func compareEntry(a, b SparseEntry) int {
	if c := cmp.Compare(a.Col, b.Col); c != 0 {
		return c
	}
	return cmp.Compare(a.Row, b.Row)
}

// Set marks (row, col) true. It fails outside the extents or when the
// capacity is exhausted.
func (s *SparseBool) Set(row, col int) error {
	coords := []int{row, col}
	if row < 1 || col < 1 || row > s.rows || col > s.cols {
		return octerr.Usage(coords, "sparse index out of bounds for %dx%d", s.rows, s.cols)
	}
	e := SparseEntry{Row: row, Col: col}
	i, found := slices.BinarySearchFunc(s.entries, e, compareEntry)
	if found {
		return nil
	}
	if len(s.entries) >= s.capacity {
		return octerr.Usage(coords, "sparse capacity %d exhausted", s.capacity)
	}
	s.entries = slices.Insert(s.entries, i, e)
	return nil
}

// At reports whether (row, col) is true.
func (s *SparseBool) At(row, col int) (bool, error) {
	if row < 1 || col < 1 || row > s.rows || col > s.cols {
		return false, octerr.Usage([]int{row, col}, "sparse index out of bounds for %dx%d", s.rows, s.cols)
	}
	_, found := slices.BinarySearchFunc(s.entries, SparseEntry{Row: row, Col: col}, compareEntry)
	return found, nil
}

func (s *SparseBool) Kind() Kind { return KindSparseBool }

// Equal compares extents and true entries; capacity is not part of the value.
func (s *SparseBool) Equal(other Value) bool {
	o, ok := other.(*SparseBool)
	if !ok || s == nil || o == nil {
		return ok && s == o
	}
	return s.rows == o.rows && s.cols == o.cols && slices.Equal(s.entries, o.entries)
}

func (s *SparseBool) Clone() Value {
	cp := *s
	cp.entries = slices.Clone(s.entries)
	return &cp
}

// FunctionHandle carries the source of an anonymous function, e.g.
// "@(x) x + 1". It can be written to the interpreter but not read back.
type FunctionHandle struct {
	Source string
}

func (f *FunctionHandle) Kind() Kind { return KindFunctionHandle }

func (f *FunctionHandle) Equal(other Value) bool {
	o, ok := other.(*FunctionHandle)
	return ok && f != nil && o != nil && f.Source == o.Source
}

func (f *FunctionHandle) Clone() Value { cp := *f; return &cp }

// Range keeps the raw wire encoding of a range, type line included, so it can
// be passed back unchanged without being expanded.
type Range struct {
	Raw string
}

func (r *Range) Kind() Kind { return KindRange }

func (r *Range) Equal(other Value) bool {
	o, ok := other.(*Range)
	return ok && r != nil && o != nil && r.Raw == o.Raw
}

func (r *Range) Clone() Value { cp := *r; return &cp }
