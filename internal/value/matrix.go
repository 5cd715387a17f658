package value

import "octbridge/internal/octerr"

// Matrix is a dense array of float64, the interpreter's default numeric type.
type Matrix struct{ Array[float64] }

// NewMatrix returns a matrix of the given shape over a copy of data, which is
// in column-major order. A nil data yields zeros.
func NewMatrix(data []float64, dims ...int) (*Matrix, error) {
	a, err := makeArray[float64](nil, data, dims)
	if err != nil {
		return nil, err
	}
	return &Matrix{a}, nil
}

// NewScalar returns a 1×1 matrix.
func NewScalar(v float64) *Matrix {
	return &Matrix{Array[float64]{dims: []int{1, 1}, data: []float64{v}}}
}

// NewEmptyMatrix returns the conventional 0×0 matrix.
func NewEmptyMatrix() *Matrix {
	return &Matrix{Array[float64]{dims: []int{0, 0}, data: []float64{}}}
}

func (m *Matrix) Kind() Kind { return KindMatrix }

func (m *Matrix) Equal(other Value) bool {
	o, ok := other.(*Matrix)
	if !ok || m == nil || o == nil {
		return ok && m == o
	}
	return equalElems(&m.Array, &o.Array)
}

func (m *Matrix) Clone() Value { return &Matrix{m.clone(nil)} }

// BoolMatrix is a dense array of logical values.
type BoolMatrix struct{ Array[bool] }

// NewBoolMatrix returns a logical matrix over a copy of data.
func NewBoolMatrix(data []bool, dims ...int) (*BoolMatrix, error) {
	a, err := makeArray[bool](nil, data, dims)
	if err != nil {
		return nil, err
	}
	return &BoolMatrix{a}, nil
}

// NewBool returns a 1×1 logical matrix.
func NewBool(v bool) *BoolMatrix {
	return &BoolMatrix{Array[bool]{dims: []int{1, 1}, data: []bool{v}}}
}

func (m *BoolMatrix) Kind() Kind { return KindBool }

func (m *BoolMatrix) Equal(other Value) bool {
	o, ok := other.(*BoolMatrix)
	if !ok || m == nil || o == nil {
		return ok && m == o
	}
	return equalElems(&m.Array, &o.Array)
}

func (m *BoolMatrix) Clone() Value { return &BoolMatrix{m.clone(nil)} }

// Integer lists the integer element types with a safe host representation.
// uint64 is deliberately absent: the bridge rejects uint64 data.
type Integer interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32
}

// IntMatrix is a dense array of fixed-width integers.
type IntMatrix[T Integer] struct{ Array[T] }

// NewIntMatrix returns an integer matrix over a copy of data.
func NewIntMatrix[T Integer](data []T, dims ...int) (*IntMatrix[T], error) {
	a, err := makeArray[T](nil, data, dims)
	if err != nil {
		return nil, err
	}
	return &IntMatrix[T]{a}, nil
}

// NewIntScalar returns a 1×1 integer matrix.
func NewIntScalar[T Integer](v T) *IntMatrix[T] {
	return &IntMatrix[T]{Array[T]{dims: []int{1, 1}, data: []T{v}}}
}

// IntKind returns the Kind of IntMatrix[T].
func IntKind[T Integer]() Kind {
	var z T
	switch any(z).(type) {
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case uint8:
		return KindUint8
	case uint16:
		return KindUint16
	default:
		return KindUint32
	}
}

// Signed reports whether the element type is signed.
func (m *IntMatrix[T]) Signed() bool {
	switch m.Kind() {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

func (m *IntMatrix[T]) Kind() Kind { return IntKind[T]() }

func (m *IntMatrix[T]) Equal(other Value) bool {
	o, ok := other.(*IntMatrix[T])
	if !ok || m == nil || o == nil {
		return ok && m == o
	}
	return equalElems(&m.Array, &o.Array)
}

func (m *IntMatrix[T]) Clone() Value { return &IntMatrix[T]{m.clone(nil)} }

// ComplexMatrix is a dense array of complex numbers. It is equivalent to a
// real and an imaginary Matrix sharing one shape.
type ComplexMatrix struct{ Array[complex128] }

// NewComplexMatrix returns a complex matrix over a copy of data.
func NewComplexMatrix(data []complex128, dims ...int) (*ComplexMatrix, error) {
	a, err := makeArray[complex128](nil, data, dims)
	if err != nil {
		return nil, err
	}
	return &ComplexMatrix{a}, nil
}

// NewComplexParts combines a real and an imaginary part of identical shape.
func NewComplexParts(re, im *Matrix) (*ComplexMatrix, error) {
	if re == nil || im == nil {
		return nil, octerr.Usage(nil, "complex parts must not be nil")
	}
	if !re.sameShape(&im.Array) {
		return nil, octerr.Usage(im.dims, "imaginary part shape differs from real part %v", re.dims)
	}
	r, i := re.Raw(), im.Raw()
	data := make([]complex128, len(r))
	for k := range r {
		data[k] = complex(r[k], i[k])
	}
	return NewComplexMatrix(data, re.dims...)
}

// NewComplexScalar returns a 1×1 complex matrix.
func NewComplexScalar(v complex128) *ComplexMatrix {
	return &ComplexMatrix{Array[complex128]{dims: []int{1, 1}, data: []complex128{v}}}
}

// Real returns the real part as a Matrix of the same shape.
func (m *ComplexMatrix) Real() *Matrix {
	return m.part(func(c complex128) float64 { return real(c) })
}

// Imag returns the imaginary part as a Matrix of the same shape.
func (m *ComplexMatrix) Imag() *Matrix {
	return m.part(func(c complex128) float64 { return imag(c) })
}

func (m *ComplexMatrix) part(f func(complex128) float64) *Matrix {
	src := m.Raw()
	data := make([]float64, len(src))
	for i, c := range src {
		data[i] = f(c)
	}
	return &Matrix{Array[float64]{dims: m.Dims(), data: data}}
}

func (m *ComplexMatrix) Kind() Kind { return KindComplex }

func (m *ComplexMatrix) Equal(other Value) bool {
	o, ok := other.(*ComplexMatrix)
	if !ok || m == nil || o == nil {
		return ok && m == o
	}
	return equalElems(&m.Array, &o.Array)
}

func (m *ComplexMatrix) Clone() Value { return &ComplexMatrix{m.clone(nil)} }
