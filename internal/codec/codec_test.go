package codec

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

func encodeNamed(t *testing.T, name string, v value.Value) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := Default().WriteNamed(w, name, v); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return buf.String()
}

func decodeNamed(t *testing.T, src string) (string, value.Value) {
	t.Helper()
	name, v, err := Default().ReadNamed(NewReader(strings.NewReader(src)))
	if err != nil {
		t.Fatalf("decode %q: %v", src, err)
	}
	return name, v
}

// must unwraps a constructor result; the arguments are constants, so a
// failure is a broken test.
func must[V value.Value](v V, err error) V {
	if err != nil {
		panic(err)
	}
	return v
}

func TestEncodeScalarExactBytes(t *testing.T) {
	got := encodeNamed(t, "tre", value.NewScalar(43))
	want := "# name: tre\n# type: scalar\n43.0\n"
	if got != want {
		t.Fatalf("encoded %q, want %q", got, want)
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		43:           "43.0",
		-2:           "-2.0",
		0.5:          "0.5",
		1e300:        "1e+300",
		math.Inf(1):  "Inf",
		math.Inf(-1): "-Inf",
	}
	for in, want := range cases {
		if got := FormatFloat(in); got != want {
			t.Errorf("FormatFloat(%v) = %q, want %q", in, got, want)
		}
	}
	if got := FormatFloat(math.NaN()); got != "NaN" {
		t.Errorf("FormatFloat(NaN) = %q", got)
	}
	if d, err := ParseFloat("NA"); err != nil || !math.IsNaN(d) {
		t.Errorf("ParseFloat(NA) = %v, %v", d, err)
	}
}

func TestRoundTrip(t *testing.T) {
	cell := must(value.NewCellOf([]value.Value{
		value.NewScalar(1),
		value.Text("two"),
		value.NewBool(true),
		value.NewEmptyMatrix(),
	}, 2, 2))
	nested := value.NewStruct()
	if err := nested.Set("inner", value.NewScalar(7)); err != nil {
		t.Fatal(err)
	}
	st := value.NewStruct()
	for name, v := range map[string]value.Value{
		"a":    value.NewScalar(1.5),
		"cell": cell,
		"s":    nested,
		"txt":  value.Text("hello\nworld"),
		"cr":   value.Text("v\r"),
	} {
		if err := st.Set(name, v); err != nil {
			t.Fatal(err)
		}
	}
	sp := must(value.NewSparseBool(3, 4, 3))
	for _, e := range [][2]int{{3, 4}, {1, 1}, {2, 2}} {
		if err := sp.Set(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name string
		v    value.Value
	}{
		{"scalar", value.NewScalar(-0.25)},
		{"matrix", must(value.NewMatrix([]float64{1, 2, 3, 4, 5, 6}, 2, 3))},
		{"matrix3d", must(value.NewMatrix([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2))},
		{"empty", value.NewEmptyMatrix()},
		{"bool", value.NewBool(false)},
		{"boolmat", must(value.NewBoolMatrix([]bool{true, false, false, true}, 2, 2))},
		{"cplx", value.NewComplexScalar(complex(1, -2))},
		{"cplxmat", must(value.NewComplexMatrix([]complex128{1, 2i, 3 + 4i}, 1, 3))},
		{"i8", value.NewIntScalar[int8](-128)},
		{"i32", must(value.NewIntMatrix([]int32{1, -2, 3}, 3, 1))},
		{"i64", value.NewIntScalar[int64](math.MaxInt64)},
		{"u8", value.NewIntScalar[uint8](255)},
		{"u32", must(value.NewIntMatrix([]uint32{7, 8}, 1, 2))},
		{"txt", value.Text("a string with spaces")},
		{"emptytxt", value.Text("")},
		{"multiline", value.Text("line1\nline2\n")},
		{"trailingcr", value.Text("x\r")},
		{"crlf", value.Text("a\r\nb")},
		{"onlybreaks", value.Text("\n\n")},
		{"cell", cell},
		{"emptycell", must(value.NewCell(0, 0))},
		{"struct", st},
		{"sparse", sp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := encodeNamed(t, tc.name, tc.v)
			name, got := decodeNamed(t, src)
			if name != tc.name {
				t.Fatalf("name = %q, want %q", name, tc.name)
			}
			if !got.Equal(tc.v) {
				t.Fatalf("round trip of %s changed the value\nwire:\n%s", tc.name, src)
			}
		})
	}
}

func TestDecodeOctaveOutput(t *testing.T) {
	src := `# Created by Octave 8.4.0, Sat Oct 18 10:00:00 2026 UTC <user@host>
# name: s
# type: scalar struct
# ndims: 2
 1 1
# length: 2
# name: x
# type: matrix
# rows: 2
# columns: 2
 1 3
 2 4


# name: y
# type: sq_string
# elements: 1
# length: 3
abc



`
	name, v, err := Default().ReadSaved(NewReader(strings.NewReader(src)))
	if err != nil {
		t.Fatalf("ReadSaved: %v", err)
	}
	if name != "s" {
		t.Fatalf("name = %q", name)
	}
	s, ok := v.(*value.Struct)
	if !ok {
		t.Fatalf("got %T, want *value.Struct", v)
	}
	x, _ := s.Get("x")
	want := must(value.NewMatrix([]float64{1, 2, 3, 4}, 2, 2))
	if !x.Equal(want) {
		t.Errorf("x = %v", x)
	}
	if y, _ := s.Get("y"); !y.Equal(value.Text("abc")) {
		t.Errorf("y = %v", y)
	}
}

func TestDecodeGlobalAndRange(t *testing.T) {
	_, v := decodeNamed(t, "# name: g\n# type: global scalar\n5\n")
	if !v.Equal(value.NewScalar(5)) {
		t.Fatalf("global scalar decoded as %v", v)
	}
	raw := "# type: range\n# base, limit, increment\n1 10 1\n"
	_, v = decodeNamed(t, "# name: r\n"+raw)
	rg, ok := v.(*value.Range)
	if !ok || rg.Raw != raw {
		t.Fatalf("range = %#v", v)
	}
	if got := encodeNamed(t, "r", rg); got != "# name: r\n"+raw {
		t.Fatalf("range re-encoded as %q", got)
	}
}

func TestEncodeFunctionHandle(t *testing.T) {
	got := encodeNamed(t, "f", &value.FunctionHandle{Source: "@(x) x + 1"})
	want := "# name: f\n# type: function handle\n@<anonymous>\n@(x) x + 1\n# length: 0\n"
	if got != want {
		t.Fatalf("encoded %q, want %q", got, want)
	}
	var buf bytes.Buffer
	err := Default().WriteValue(NewWriter(&buf), &value.FunctionHandle{Source: "x + 1"})
	if !octerr.Is(err, octerr.KindEncode) {
		t.Fatalf("err = %v, want encode failure", err)
	}
}

func TestUnsupportedTag(t *testing.T) {
	src := "# name: u\n# type: uint64 matrix\n# ndims: 2\n 1 1\n 5\n"
	_, _, err := Default().ReadNamed(NewReader(strings.NewReader(src)))
	if !octerr.Is(err, octerr.KindParse) {
		t.Fatalf("err = %v, want parse failure", err)
	}
}

func TestMalformedInput(t *testing.T) {
	cases := map[string]string{
		"no name":         "# type: scalar\n1\n",
		"no type":         "# name: x\nscalar\n",
		"bad number":      "# name: x\n# type: scalar\nabc\n",
		"truncated":       "# name: x\n# type: matrix\n# rows: 2\n# columns: 2\n 1 2\n",
		"short row":       "# name: x\n# type: matrix\n# rows: 1\n# columns: 3\n 1 2\n",
		"bad logical":     "# name: x\n# type: bool\n2\n",
		"int overflow":    "# name: x\n# type: int8 scalar\n300\n",
		"string length":   "# name: x\n# type: string\n# elements: 1\n# length: 2\nabc\n",
		"char matrix":     "# name: x\n# type: string\n# elements: 2\n# length: 1\na\nb\n",
		"struct array":    "# name: x\n# type: struct\n# ndims: 2\n 1 2\n# length: 0\n",
		"unwrapped field": "# name: x\n# type: struct\n# length: 1\n# name: a\n# type: scalar\n1\n",
		"sparse bounds":   "# name: x\n# type: sparse bool matrix\n# nnz: 1\n# rows: 2\n# columns: 2\n3 1 1\n",
		"empty":           "",
		"text past end":   "# name: x\n# type: string\n# elements: 1\n# length: 10\nabc\n",
		"extent overflow": "# name: x\n# type: matrix\n# ndims: 2\n 4611686018427387904 2\n",
		"product wraps":   "# name: x\n# type: matrix\n# ndims: 2\n 4294967296 4294967296\n",
		"rows overflow":   "# name: x\n# type: matrix\n# rows: 4611686018427387904\n# columns: 4\n 1 2 3 4\n",
		"huge extents":    "# name: x\n# type: matrix\n# ndims: 2\n 1000000000000 1\n 1\n",
		"cell overflow":   "# name: x\n# type: cell\n# ndims: 2\n 4294967296 4294967296\n",
	}
	for name, src := range cases {
		_, _, err := Default().ReadNamed(NewReader(strings.NewReader(src)))
		if err == nil {
			t.Errorf("%s: decoded without error", name)
			continue
		}
		if !octerr.Is(err, octerr.KindParse) {
			t.Errorf("%s: err = %v, want parse failure", name, err)
		}
	}
}

func TestIntegerWireForms(t *testing.T) {
	if got := encodeNamed(t, "a", value.NewIntScalar[int32](-7)); got != "# name: a\n# type: int32 scalar\n-7\n" {
		t.Errorf("int32 scalar encoded as %q", got)
	}
	want := "# name: b\n# type: uint16 matrix\n# ndims: 2\n 1 1\n 9\n"
	if got := encodeNamed(t, "b", value.NewIntScalar[uint16](9)); got != want {
		t.Errorf("uint16 scalar encoded as %q, want %q", got, want)
	}
}

func TestEndOfBatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	EndOfBatch(w)
	if buf.String() != "# name: \n" || w.Written() != int64(buf.Len()) {
		t.Fatalf("end of batch = %q", buf.String())
	}
}

func TestTextKeepsCarriageReturns(t *testing.T) {
	st := value.NewStruct()
	if err := st.Set("a", value.Text("v\r")); err != nil {
		t.Fatal(err)
	}
	if err := st.Set("b", value.NewScalar(1)); err != nil {
		t.Fatal(err)
	}
	_, v := decodeNamed(t, encodeNamed(t, "s", st))
	got, ok := v.(*value.Struct)
	if !ok {
		t.Fatalf("got %T", v)
	}
	a, _ := got.Get("a")
	if !a.Equal(value.Text("v\r")) {
		t.Fatalf("a = %q", a)
	}

	// The terminator of the last record may be taken by the protocol.
	_, v = decodeNamed(t, "# name: t\n# type: string\n# elements: 1\n# length: 4\na\r\nb")
	if !v.Equal(value.Text("a\r\nb")) {
		t.Fatalf("t = %q", v)
	}
}
