package value

import (
	"math"
	"math/bits"
	"slices"

	"octbridge/internal/octerr"
)

// Array is a dense rank-N array stored column-major: the first index varies
// fastest, matching the wire format. Rank is at least 2.
type Array[T any] struct {
	dims []int
	data []T
	fill func() T // value for newly exposed slots; nil means the zero T
}

func makeArray[T any](fill func() T, data []T, dims []int) (Array[T], error) {
	n, err := checkDims(dims)
	if err != nil {
		return Array[T]{}, err
	}
	a := Array[T]{dims: slices.Clone(dims), fill: fill}
	if data == nil {
		a.data = make([]T, n)
		a.fillSlice(a.data)
		return a, nil
	}
	if len(data) < n {
		return Array[T]{}, octerr.Usage(dims, "data holds %d elements, shape needs %d", len(data), n)
	}
	a.data = slices.Clone(data[:n])
	return a, nil
}

func checkDims(dims []int) (int, error) {
	if len(dims) < 2 {
		return 0, octerr.Usage(dims, "rank %d below minimum of 2", len(dims))
	}
	n, ok := ElementCount(dims)
	if !ok {
		return 0, octerr.Usage(dims, "invalid extents: negative or element count overflows")
	}
	return n, nil
}

// ElementCount returns the product of the extents. It reports false when an
// extent is negative or the product does not fit in an int.
func ElementCount(dims []int) (int, bool) {
	n := uint64(1)
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(n, uint64(d))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		n = lo
	}
	return int(n), true
}

func (a *Array[T]) fillSlice(s []T) {
	if a.fill == nil {
		return
	}
	for i := range s {
		s[i] = a.fill()
	}
}

// Dims returns a copy of the extents.
func (a *Array[T]) Dims() []int { return slices.Clone(a.dims) }

// Rank returns the number of dimensions.
func (a *Array[T]) Rank() int { return len(a.dims) }

// Size returns the extent of the 1-based dimension dim. Dimensions past the
// rank have extent 1.
func (a *Array[T]) Size(dim int) int {
	if dim < 1 {
		return 0
	}
	if dim > len(a.dims) {
		return 1
	}
	return a.dims[dim-1]
}

// Len returns the number of elements.
func (a *Array[T]) Len() int {
	n := 1
	for _, d := range a.dims {
		n *= d
	}
	return n
}

// IsScalar reports whether the array is a rank-2 1×1 array.
func (a *Array[T]) IsScalar() bool {
	return len(a.dims) == 2 && a.dims[0] == 1 && a.dims[1] == 1
}

// Raw returns the live elements in column-major order. The slice aliases the
// array's storage and is invalidated by any resize.
func (a *Array[T]) Raw() []T { return a.data[:a.Len()] }

// Data returns a copy of the elements in column-major order.
func (a *Array[T]) Data() []T { return slices.Clone(a.Raw()) }

// Offset maps 1-based coordinates to the 0-based storage offset:
// sum((coord[i]-1) * prod(extent[0..i-1])).
func (a *Array[T]) Offset(coords ...int) (int, error) {
	if len(coords) != len(a.dims) {
		return 0, octerr.Usage(coords, "rank mismatch: %d coordinates for rank %d", len(coords), len(a.dims))
	}
	off, stride := 0, 1
	for i, c := range coords {
		if c < 1 || c > a.dims[i] {
			return 0, octerr.Usage(coords, "index out of bounds for shape %v", a.dims)
		}
		off += (c - 1) * stride
		stride *= a.dims[i]
	}
	return off, nil
}

// At returns the element at the 1-based coordinates.
func (a *Array[T]) At(coords ...int) (T, error) {
	off, err := a.Offset(coords...)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.data[off], nil
}

// Set stores v at the 1-based coordinates, growing the array to the smallest
// shape covering them when needed.
func (a *Array[T]) Set(v T, coords ...int) error {
	if len(coords) != len(a.dims) {
		return octerr.Usage(coords, "rank mismatch: %d coordinates for rank %d", len(coords), len(a.dims))
	}
	var grown []int
	for i, c := range coords {
		if c < 1 {
			return octerr.Usage(coords, "index must be positive")
		}
		if c > a.dims[i] {
			if grown == nil {
				grown = slices.Clone(a.dims)
			}
			grown[i] = c
		}
	}
	if grown != nil {
		if err := a.Resize(grown...); err != nil {
			return err
		}
	}
	off, err := a.Offset(coords...)
	if err != nil {
		return err
	}
	a.data[off] = v
	return nil
}

// Resize grows the array to dims. Rank is fixed and no extent may shrink.
// Existing elements keep their coordinates; new slots take the fill value.
func (a *Array[T]) Resize(dims ...int) error {
	if len(dims) != len(a.dims) {
		return octerr.Usage(dims, "resize cannot change rank %d", len(a.dims))
	}
	grow := false
	for i, d := range dims {
		if d < a.dims[i] {
			return octerr.Usage(dims, "resize cannot shrink shape %v", a.dims)
		}
		if d > a.dims[i] {
			grow = true
		}
	}
	if !grow {
		return nil
	}
	n, err := checkDims(dims)
	if err != nil {
		return err
	}
	next := make([]T, n)
	a.fillSlice(next)

	// Runs along the first dimension are contiguous in both layouts.
	run := a.dims[0]
	oldLen := a.Len()
	if run > 0 && oldLen > 0 {
		idx := make([]int, len(dims))
		for src := 0; src < oldLen; src += run {
			dst, stride := 0, dims[0]
			for k := 1; k < len(idx); k++ {
				dst += idx[k] * stride
				stride *= dims[k]
			}
			copy(next[dst:dst+run], a.data[src:src+run])
			for k := 1; k < len(idx); k++ {
				idx[k]++
				if idx[k] < a.dims[k] {
					break
				}
				idx[k] = 0
			}
		}
	}
	a.data = next
	a.dims = slices.Clone(dims)
	return nil
}

func (a *Array[T]) clone(elem func(T) T) Array[T] {
	out := Array[T]{dims: slices.Clone(a.dims), fill: a.fill}
	src := a.Raw()
	out.data = make([]T, len(src))
	if elem == nil {
		copy(out.data, src)
		return out
	}
	for i, v := range src {
		out.data[i] = elem(v)
	}
	return out
}

func (a *Array[T]) sameShape(b *Array[T]) bool {
	return slices.Equal(a.dims, b.dims)
}

func equalElems[T comparable](a, b *Array[T]) bool {
	if !a.sameShape(b) {
		return false
	}
	x, y := a.Raw(), b.Raw()
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
