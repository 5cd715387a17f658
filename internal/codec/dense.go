package codec

import (
	"strconv"
	"strings"

	"fortio.org/safecast"

	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

// readDense reads a matrix body in either layout:
//
//	# rows: R / # columns: C, then R lines of C values (rank 2), or
//	# ndims: N, then N extents, then one value per line, column-major.
func readDense[T any](r *Reader, parse func(string) (T, error)) ([]int, []T, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, nil, err
	}
	if v, ok := strings.CutPrefix(line, "# ndims: "); ok {
		rank, err := r.count(v, "ndims")
		if err != nil {
			return nil, nil, err
		}
		dims, err := r.dimsLine(rank)
		if err != nil {
			return nil, nil, err
		}
		n, err := r.elementCount(dims)
		if err != nil {
			return nil, nil, err
		}
		data := make([]T, 0, min(n, preallocLimit))
		for i := range n {
			s, err := r.ReadLine()
			if err != nil {
				return nil, nil, err
			}
			x, err := parse(strings.TrimSpace(s))
			if err != nil {
				return nil, nil, r.errorf("element %d: %v", i+1, err)
			}
			data = append(data, x)
		}
		return dims, data, nil
	}
	v, ok := strings.CutPrefix(line, "# rows: ")
	if !ok {
		return nil, nil, r.errorf("expected \"# rows: \" or \"# ndims: \", got %q", line)
	}
	rows, err := r.count(v, "rows")
	if err != nil {
		return nil, nil, err
	}
	cols, err := r.headerInt("columns")
	if err != nil {
		return nil, nil, err
	}
	n, err := r.elementCount(dims2(rows, cols))
	if err != nil {
		return nil, nil, err
	}
	// Rows arrive in row-major order; buffer them as they come and transpose
	// at the end so memory follows the data actually read, not the header.
	byRow := make([]T, 0, min(n, preallocLimit))
	for i := 0; i < rows; i++ {
		s, err := r.ReadLine()
		if err != nil {
			return nil, nil, err
		}
		fields := strings.Fields(s)
		if len(fields) != cols {
			return nil, nil, r.errorf("row %d has %d values, want %d", i+1, len(fields), cols)
		}
		for j, f := range fields {
			x, err := parse(f)
			if err != nil {
				return nil, nil, r.errorf("row %d column %d: %v", i+1, j+1, err)
			}
			byRow = append(byRow, x)
		}
	}
	data := make([]T, n)
	for i := range rows {
		for j := range cols {
			data[i+j*rows] = byRow[i*cols+j]
		}
	}
	return dims2(rows, cols), data, nil
}

func dims2(rows, cols int) []int { return []int{rows, cols} }

// writeDense writes a matrix body. Rank-2 arrays use the rows/columns layout
// unless forceND is set.
func writeDense[T any](w *Writer, a *value.Array[T], format func(T) string, forceND bool) {
	dims := a.Dims()
	data := a.Raw()
	if len(dims) == 2 && !forceND {
		rows, cols := dims[0], dims[1]
		w.Printf("# rows: %d\n# columns: %d\n", rows, cols)
		var sb strings.Builder
		for i := 0; i < rows; i++ {
			sb.Reset()
			for j := 0; j < cols; j++ {
				sb.WriteByte(' ')
				sb.WriteString(format(data[i+j*rows]))
			}
			sb.WriteByte('\n')
			w.WriteString(sb.String())
		}
		return
	}
	w.Printf("# ndims: %d\n", len(dims))
	for _, d := range dims {
		w.WriteString(" " + strconv.Itoa(d))
	}
	w.WriteString("\n")
	for _, v := range data {
		w.WriteString(" " + format(v) + "\n")
	}
}

func readScalarLine[T any](r *Reader, parse func(string) (T, error)) (T, error) {
	s, err := r.ReadLine()
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := parse(strings.TrimSpace(s))
	if err != nil {
		var zero T
		return zero, r.errorf("%v", err)
	}
	return v, nil
}

func decodeScalar(_ *Registry, r *Reader) (value.Value, error) {
	d, err := readScalarLine(r, ParseFloat)
	if err != nil {
		return nil, err
	}
	return value.NewScalar(d), nil
}

func decodeMatrix(_ *Registry, r *Reader) (value.Value, error) {
	dims, data, err := readDense(r, ParseFloat)
	if err != nil {
		return nil, err
	}
	return value.NewMatrix(data, dims...)
}

func encodeMatrix(_ *Registry, w *Writer, v value.Value) error {
	m, ok := v.(*value.Matrix)
	if !ok {
		return octerr.Encode("matrix encoder given %T", v)
	}
	if m.IsScalar() {
		w.WriteString(typePrefix + "scalar\n")
		w.WriteString(FormatFloat(m.Raw()[0]) + "\n")
		return nil
	}
	w.WriteString(typePrefix + "matrix\n")
	writeDense(w, &m.Array, FormatFloat, false)
	return nil
}

func decodeBool(_ *Registry, r *Reader) (value.Value, error) {
	b, err := readScalarLine(r, parseBool)
	if err != nil {
		return nil, err
	}
	return value.NewBool(b), nil
}

func decodeBoolMatrix(_ *Registry, r *Reader) (value.Value, error) {
	dims, data, err := readDense(r, parseBool)
	if err != nil {
		return nil, err
	}
	return value.NewBoolMatrix(data, dims...)
}

func encodeBoolMatrix(_ *Registry, w *Writer, v value.Value) error {
	m, ok := v.(*value.BoolMatrix)
	if !ok {
		return octerr.Encode("bool matrix encoder given %T", v)
	}
	if m.IsScalar() {
		w.WriteString(typePrefix + "bool\n")
		w.WriteString(formatBool(m.Raw()[0]) + "\n")
		return nil
	}
	w.WriteString(typePrefix + "bool matrix\n")
	writeDense(w, &m.Array, formatBool, false)
	return nil
}

func decodeComplexScalar(_ *Registry, r *Reader) (value.Value, error) {
	c, err := readScalarLine(r, parseComplex)
	if err != nil {
		return nil, err
	}
	return value.NewComplexScalar(c), nil
}

func decodeComplexMatrix(_ *Registry, r *Reader) (value.Value, error) {
	dims, data, err := readDense(r, parseComplex)
	if err != nil {
		return nil, err
	}
	return value.NewComplexMatrix(data, dims...)
}

func encodeComplexMatrix(_ *Registry, w *Writer, v value.Value) error {
	m, ok := v.(*value.ComplexMatrix)
	if !ok {
		return octerr.Encode("complex matrix encoder given %T", v)
	}
	if m.IsScalar() {
		w.WriteString(typePrefix + "complex scalar\n")
		w.WriteString(formatComplex(m.Raw()[0]) + "\n")
		return nil
	}
	w.WriteString(typePrefix + "complex matrix\n")
	writeDense(w, &m.Array, formatComplex, false)
	return nil
}

// intPrefix returns the tag prefix of an integer type, e.g. "int32".
func intPrefix[T value.Integer]() string {
	k := value.IntKind[T]()
	return strings.TrimSuffix(k.String(), " matrix")
}

func parseInt[T value.Integer](s string) (T, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[T](n)
}

func formatInt[T value.Integer](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

// registerInt installs the "<type> scalar" and "<type> matrix" decoders and
// the encoder for IntMatrix[T].
func registerInt[T value.Integer](reg *Registry) {
	prefix := intPrefix[T]()
	reg.decoders[prefix+" scalar"] = func(_ *Registry, r *Reader) (value.Value, error) {
		n, err := readScalarLine(r, parseInt[T])
		if err != nil {
			return nil, err
		}
		return value.NewIntScalar(n), nil
	}
	reg.decoders[prefix+" matrix"] = func(_ *Registry, r *Reader) (value.Value, error) {
		dims, data, err := readDense(r, parseInt[T])
		if err != nil {
			return nil, err
		}
		return value.NewIntMatrix(data, dims...)
	}
	reg.encoders[value.IntKind[T]()] = func(_ *Registry, w *Writer, v value.Value) error {
		m, ok := v.(*value.IntMatrix[T])
		if !ok {
			return octerr.Encode("%s encoder given %T", prefix, v)
		}
		// Only signed types use the single-element form.
		if m.IsScalar() && m.Signed() {
			w.WriteString(typePrefix + prefix + " scalar\n")
			w.WriteString(formatInt(m.Raw()[0]) + "\n")
			return nil
		}
		w.WriteString(typePrefix + prefix + " matrix\n")
		writeDense(w, &m.Array, formatInt[T], true)
		return nil
	}
}
