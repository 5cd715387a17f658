package value

import "octbridge/internal/octerr"

func emptyFill() Value { return NewEmptyMatrix() }

// Cell is a heterogeneous array whose elements are Values. Slots that have
// never been set hold an empty 0×0 Matrix.
type Cell struct{ Array[Value] }

// NewCell returns a cell of the given shape filled with empty matrices.
func NewCell(dims ...int) (*Cell, error) {
	a, err := makeArray(emptyFill, nil, dims)
	if err != nil {
		return nil, err
	}
	return &Cell{a}, nil
}

// NewCellOf returns a cell over clones of elems in column-major order.
func NewCellOf(elems []Value, dims ...int) (*Cell, error) {
	c, err := NewCell(dims...)
	if err != nil {
		return nil, err
	}
	if len(elems) < c.Len() {
		return nil, octerr.Usage(dims, "data holds %d elements, shape needs %d", len(elems), c.Len())
	}
	for i := range c.data {
		if elems[i] == nil {
			return nil, octerr.Usage(nil, "cell element %d is nil", i+1)
		}
		c.data[i] = elems[i].Clone()
	}
	return c, nil
}

// At returns a copy of the element at the 1-based coordinates.
func (c *Cell) At(coords ...int) (Value, error) {
	v, err := c.Array.At(coords...)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// Set stores a copy of v, growing the cell when needed.
func (c *Cell) Set(v Value, coords ...int) error {
	if v == nil {
		return octerr.Usage(coords, "cannot store nil in a cell")
	}
	return c.Array.Set(v.Clone(), coords...)
}

// Data returns copies of the elements in column-major order. Raw, promoted
// from Array, returns the stored elements themselves.
func (c *Cell) Data() []Value {
	src := c.Raw()
	out := make([]Value, len(src))
	for i, v := range src {
		out[i] = v.Clone()
	}
	return out
}

func (c *Cell) Kind() Kind { return KindCell }

func (c *Cell) Equal(other Value) bool {
	o, ok := other.(*Cell)
	if !ok || c == nil || o == nil {
		return ok && c == o
	}
	if !c.sameShape(&o.Array) {
		return false
	}
	x, y := c.Raw(), o.Raw()
	for i := range x {
		if !x[i].Equal(y[i]) {
			return false
		}
	}
	return true
}

func (c *Cell) Clone() Value {
	return &Cell{c.clone(func(v Value) Value { return v.Clone() })}
}
