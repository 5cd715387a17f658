package codec

import (
	"strings"

	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

// decodeSparseBool reads "# nnz", "# rows", "# columns" and one "r c 1" line
// per true entry.
func decodeSparseBool(_ *Registry, r *Reader) (value.Value, error) {
	nnz, err := r.headerInt("nnz")
	if err != nil {
		return nil, err
	}
	rows, err := r.headerInt("rows")
	if err != nil {
		return nil, err
	}
	cols, err := r.headerInt("columns")
	if err != nil {
		return nil, err
	}
	s, err := value.NewSparseBool(rows, cols, nnz)
	if err != nil {
		return nil, err
	}
	for range nnz {
		line, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, r.errorf("sparse entry %q: want \"row column value\"", line)
		}
		row, err := r.count(fields[0], "row")
		if err != nil {
			return nil, err
		}
		col, err := r.count(fields[1], "column")
		if err != nil {
			return nil, err
		}
		b, err := parseBool(fields[2])
		if err != nil {
			return nil, r.errorf("%v", err)
		}
		if !b {
			continue
		}
		if err := s.Set(row, col); err != nil {
			return nil, r.errorf("%v", err)
		}
	}
	return s, nil
}

func encodeSparseBool(_ *Registry, w *Writer, v value.Value) error {
	s, ok := v.(*value.SparseBool)
	if !ok {
		return octerr.Encode("sparse bool encoder given %T", v)
	}
	w.WriteString(typePrefix + "sparse bool matrix\n")
	w.Printf("# nnz: %d\n# rows: %d\n# columns: %d\n", s.NNZ(), s.Rows(), s.Cols())
	for _, e := range s.Entries() {
		w.Printf("%d %d 1\n", e.Row, e.Col)
	}
	return nil
}

// encodeFunctionHandle writes an anonymous function. The interpreter
// re-parses the source when the record is loaded.
func encodeFunctionHandle(_ *Registry, w *Writer, v value.Value) error {
	f, ok := v.(*value.FunctionHandle)
	if !ok {
		return octerr.Encode("function handle encoder given %T", v)
	}
	src := strings.TrimSpace(f.Source)
	if !strings.HasPrefix(src, "@") {
		return octerr.Encode("function handle source %q does not start with '@'", f.Source)
	}
	if strings.ContainsAny(src, "\r\n") {
		return octerr.Encode("function handle source must be a single line")
	}
	w.WriteString(typePrefix + "function handle\n@<anonymous>\n")
	w.WriteString(src + "\n")
	w.WriteString("# length: 0\n")
	return nil
}

// rangeDecoder keeps a range record verbatim: the type line, the column
// comment and the base/limit/increment line.
func rangeDecoder(tag string) Decoder {
	return func(_ *Registry, r *Reader) (value.Value, error) {
		var sb strings.Builder
		sb.WriteString(typePrefix + tag + "\n")
		for range 2 {
			line, err := r.ReadLine()
			if err != nil {
				return nil, err
			}
			sb.WriteString(line + "\n")
		}
		return &value.Range{Raw: sb.String()}, nil
	}
}

func encodeRange(_ *Registry, w *Writer, v value.Value) error {
	rg, ok := v.(*value.Range)
	if !ok {
		return octerr.Encode("range encoder given %T", v)
	}
	if !strings.HasPrefix(rg.Raw, typePrefix) {
		return octerr.Encode("range record has no type line")
	}
	raw := rg.Raw
	if !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}
	w.WriteString(raw)
	return nil
}
