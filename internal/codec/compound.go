package codec

import (
	"strconv"
	"strings"

	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

// decodeText reads a single-row char array. The length counts bytes; the
// content is taken verbatim and may contain line breaks.
func decodeText(_ *Registry, r *Reader) (value.Value, error) {
	elements, err := r.headerInt("elements")
	if err != nil {
		return nil, err
	}
	switch elements {
	case 0:
		return value.Text(""), nil
	case 1:
	default:
		return nil, r.errorf("char arrays with %d rows are not supported", elements)
	}
	length, err := r.headerInt("length")
	if err != nil {
		return nil, err
	}
	s, err := r.readRaw(length)
	if err != nil {
		return nil, err
	}
	return value.Text(s), nil
}

func encodeText(_ *Registry, w *Writer, v value.Value) error {
	t, ok := v.(value.Text)
	if !ok {
		return octerr.Encode("text encoder given %T", v)
	}
	w.WriteString(typePrefix + "string\n# elements: 1\n")
	w.Printf("# length: %d\n", len(t))
	w.WriteString(string(t) + "\n")
	return nil
}

// decodeCell reads "# rows"/"# columns" (or "# ndims") followed by one named
// record per element in column-major order. Blank separator lines between
// elements and after columns are skipped.
func decodeCell(reg *Registry, r *Reader) (value.Value, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	var dims []int
	if v, ok := strings.CutPrefix(line, "# ndims: "); ok {
		rank, err := r.count(v, "ndims")
		if err != nil {
			return nil, err
		}
		if dims, err = r.dimsLine(rank); err != nil {
			return nil, err
		}
	} else if v, ok := strings.CutPrefix(line, "# rows: "); ok {
		rows, err := r.count(v, "rows")
		if err != nil {
			return nil, err
		}
		cols, err := r.headerInt("columns")
		if err != nil {
			return nil, err
		}
		dims = dims2(rows, cols)
	} else {
		return nil, r.errorf("expected cell dimensions, got %q", line)
	}
	n, err := r.elementCount(dims)
	if err != nil {
		return nil, err
	}
	elems := make([]value.Value, 0, min(n, preallocLimit))
	for range n {
		if err := r.SkipBlank(); err != nil {
			return nil, err
		}
		if err := r.expect(namePrefix + CellElementName); err != nil {
			return nil, err
		}
		e, err := reg.ReadValue(r)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if err := r.SkipBlank(); err != nil {
		return nil, err
	}
	return value.NewCellOf(elems, dims...)
}

func encodeCell(reg *Registry, w *Writer, v value.Value) error {
	c, ok := v.(*value.Cell)
	if !ok {
		return octerr.Encode("cell encoder given %T", v)
	}
	dims := c.Dims()
	w.WriteString(typePrefix + "cell\n")
	nd := len(dims) > 2
	if nd {
		w.Printf("# ndims: %d\n", len(dims))
		for _, d := range dims {
			w.WriteString(" " + strconv.Itoa(d))
		}
		w.WriteString("\n")
	} else {
		w.Printf("# rows: %d\n# columns: %d\n", dims[0], dims[1])
	}
	elems := c.Raw()
	rows := dims[0]
	for i, e := range elems {
		if err := reg.WriteNamed(w, CellElementName, e); err != nil {
			return err
		}
		w.WriteString("\n")
		if !nd && (i+1)%rows == 0 {
			w.WriteString("\n")
		}
	}
	// Columns of an empty cell still end with a separator.
	if !nd && rows == 0 {
		for range dims[1] {
			w.WriteString("\n")
		}
	}
	return nil
}

// decodeStruct reads the cell-wrapped field layout: every field value is a
// 1×1 cell. An optional "# ndims" header must describe a single element.
func decodeStruct(reg *Registry, r *Reader) (value.Value, error) {
	return readStruct(reg, r, true)
}

// decodeScalarStruct reads the layout where field records are stored
// directly.
func decodeScalarStruct(reg *Registry, r *Reader) (value.Value, error) {
	return readStruct(reg, r, false)
}

func readStruct(reg *Registry, r *Reader, wrapped bool) (value.Value, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	if v, ok := strings.CutPrefix(line, "# ndims: "); ok {
		rank, err := r.count(v, "ndims")
		if err != nil {
			return nil, err
		}
		dims, err := r.dimsLine(rank)
		if err != nil {
			return nil, err
		}
		for _, d := range dims {
			if d != 1 {
				return nil, r.errorf("struct arrays of shape %v are not supported", dims)
			}
		}
		if line, err = r.ReadLine(); err != nil {
			return nil, err
		}
	}
	v, ok := strings.CutPrefix(line, "# length: ")
	if !ok {
		return nil, r.errorf("expected \"# length: \", got %q", line)
	}
	length, err := r.count(v, "length")
	if err != nil {
		return nil, err
	}
	s := value.NewStruct()
	for range length {
		if err := r.SkipBlank(); err != nil {
			return nil, err
		}
		name, field, err := reg.ReadNamed(r)
		if err != nil {
			return nil, err
		}
		if wrapped {
			c, ok := field.(*value.Cell)
			if !ok || !c.IsScalar() {
				return nil, r.errorf("struct field %q is not a 1x1 cell", name)
			}
			if field, err = c.At(1, 1); err != nil {
				return nil, err
			}
		}
		if err := s.Set(name, field); err != nil {
			return nil, err
		}
	}
	if err := r.SkipBlank(); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeStruct(reg *Registry, w *Writer, v value.Value) error {
	s, ok := v.(*value.Struct)
	if !ok {
		return octerr.Encode("struct encoder given %T", v)
	}
	keys := s.Keys()
	w.WriteString(typePrefix + "struct\n")
	w.Printf("# length: %d\n", len(keys))
	for _, k := range keys {
		field, _ := s.Get(k)
		wrap, err := value.NewCellOf([]value.Value{field}, 1, 1)
		if err != nil {
			return err
		}
		if err := reg.WriteNamed(w, k, wrap); err != nil {
			return err
		}
	}
	return nil
}
