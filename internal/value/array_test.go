package value

import (
	"math"
	"slices"
	"testing"

	"octbridge/internal/octerr"
)

func TestMatrix_GrowFromEmpty(t *testing.T) {
	m := NewEmptyMatrix()
	if err := m.Set(1, 1, 1); err != nil {
		t.Fatalf("set (1,1): %v", err)
	}
	if err := m.Set(3, 3, 1); err != nil {
		t.Fatalf("set (3,1): %v", err)
	}
	if got := m.Dims(); !slices.Equal(got, []int{3, 1}) {
		t.Fatalf("dims = %v, want [3 1]", got)
	}
	if got := m.Data(); !slices.Equal(got, []float64{1, 0, 3}) {
		t.Fatalf("data = %v, want [1 0 3]", got)
	}
}

func TestArray_OffsetColumnMajor(t *testing.T) {
	m, err := NewMatrix(nil, 2, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		coords []int
		want   int
	}{
		{[]int{1, 1, 1}, 0},
		{[]int{2, 1, 1}, 1},
		{[]int{1, 2, 1}, 2},
		{[]int{2, 3, 1}, 5},
		{[]int{1, 1, 2}, 6},
		{[]int{2, 3, 4}, 23},
	}
	for _, tc := range cases {
		got, err := m.Offset(tc.coords...)
		if err != nil {
			t.Fatalf("offset %v: %v", tc.coords, err)
		}
		if got != tc.want {
			t.Errorf("offset %v = %d, want %d", tc.coords, got, tc.want)
		}
	}
}

func TestArray_OutOfBounds(t *testing.T) {
	m, _ := NewMatrix([]float64{1, 2, 3, 4}, 2, 2)
	for _, coords := range [][]int{{0, 1}, {3, 1}, {1, 3}, {-1, 1}} {
		_, err := m.At(coords...)
		if !octerr.Is(err, octerr.KindUsage) {
			t.Errorf("At%v: expected usage error, got %v", coords, err)
		}
	}
	if err := m.Set(5, 0, 1); !octerr.Is(err, octerr.KindUsage) {
		t.Errorf("Set at 0 should fail with usage error, got %v", err)
	}
}

func TestArray_RankMismatch(t *testing.T) {
	m, _ := NewMatrix(nil, 2, 2)
	err := m.Set(1, 1, 1, 1)
	if !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := m.Resize(3, 3, 3); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("expected usage error on rank change, got %v", err)
	}
	if err := m.Resize(1, 2); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("expected usage error on shrink, got %v", err)
	}
}

func TestArray_MinimumRank(t *testing.T) {
	if _, err := NewMatrix([]float64{1}, 1); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("rank 1 should be rejected, got %v", err)
	}
	if _, err := NewMatrix([]float64{1}, 2, 2); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("short data should be rejected, got %v", err)
	}
}

func TestArray_ResizePreservesData(t *testing.T) {
	data := make([]float64, 2*3*2)
	for i := range data {
		data[i] = float64(i + 1)
	}
	m, err := NewMatrix(data, 2, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	old := m.Clone().(*Matrix)
	if err := m.Set(99, 4, 1, 3); err != nil {
		t.Fatal(err)
	}
	if got := m.Dims(); !slices.Equal(got, []int{4, 3, 3}) {
		t.Fatalf("dims = %v", got)
	}
	for i := 1; i <= 2; i++ {
		for j := 1; j <= 3; j++ {
			for k := 1; k <= 2; k++ {
				want, _ := old.At(i, j, k)
				got, err := m.At(i, j, k)
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Errorf("(%d,%d,%d) = %v, want %v", i, j, k, got, want)
				}
			}
		}
	}
	if v, _ := m.At(4, 1, 3); v != 99 {
		t.Errorf("new element = %v, want 99", v)
	}
	if v, _ := m.At(3, 2, 3); v != 0 {
		t.Errorf("fresh slot = %v, want 0", v)
	}
}

func TestCell_ResizeFillsEmptyMatrix(t *testing.T) {
	c, err := NewCell(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(Text("x"), 2, 2); err != nil {
		t.Fatal(err)
	}
	v, err := c.At(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(NewEmptyMatrix()) {
		t.Fatalf("fresh slot = %#v, want empty matrix", v)
	}
	if v, _ := c.At(2, 2); !v.Equal(Text("x")) {
		t.Fatalf("(2,2) = %#v", v)
	}
}

func TestEqual_NaNNeverEqual(t *testing.T) {
	a := NewScalar(math.NaN())
	b := NewScalar(math.NaN())
	if a.Equal(b) {
		t.Fatal("NaN matrices must not compare equal")
	}
	if !NewScalar(math.Inf(1)).Equal(NewScalar(math.Inf(1))) {
		t.Fatal("+Inf should equal +Inf")
	}
}

func TestEqual_VariantsDiffer(t *testing.T) {
	if NewScalar(1).Equal(NewBool(true)) {
		t.Fatal("matrix and bool matrix must differ")
	}
	if NewIntScalar[int8](1).Equal(NewIntScalar[int16](1)) {
		t.Fatal("int widths must differ")
	}
	m1, _ := NewMatrix([]float64{1, 2}, 1, 2)
	m2, _ := NewMatrix([]float64{1, 2}, 2, 1)
	if m1.Equal(m2) {
		t.Fatal("shape must matter")
	}
}

func TestStruct_CopyIsolation(t *testing.T) {
	s := NewStruct()
	if err := s.Set("scalar", NewScalar(42)); err != nil {
		t.Fatal(err)
	}
	v, ok := s.Get("scalar")
	if !ok {
		t.Fatal("field missing")
	}
	m := v.(*Matrix)
	if err := m.Set(10, 1, 1); err != nil {
		t.Fatal(err)
	}
	again, _ := s.Get("scalar")
	if got, _ := again.(*Matrix).At(1, 1); got != 42 {
		t.Fatalf("stored field changed to %v", got)
	}
}

func TestStruct_KeysSorted(t *testing.T) {
	s := NewStruct()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		_ = s.Set(k, Text(k))
	}
	if got := s.Keys(); !slices.Equal(got, []string{"alpha", "mid", "zeta"}) {
		t.Fatalf("keys = %v", got)
	}
}

func TestComplexParts(t *testing.T) {
	re, _ := NewMatrix([]float64{1, 2}, 1, 2)
	im, _ := NewMatrix([]float64{3, 4}, 1, 2)
	c, err := NewComplexParts(re, im)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Real().Equal(re) || !c.Imag().Equal(im) {
		t.Fatal("parts do not round-trip")
	}
	bad, _ := NewMatrix([]float64{3, 4}, 2, 1)
	if _, err := NewComplexParts(re, bad); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestSparseBool(t *testing.T) {
	s, err := NewSparseBool(3, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Set(3, 1)
	_ = s.Set(1, 2)
	if err := s.Set(2, 2); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("capacity should be enforced, got %v", err)
	}
	if got := s.Entries(); !slices.Equal(got, []SparseEntry{{3, 1}, {1, 2}}) {
		t.Fatalf("entries = %v", got)
	}
	if on, _ := s.At(1, 2); !on {
		t.Fatal("(1,2) should be true")
	}
	if on, _ := s.At(2, 2); on {
		t.Fatal("(2,2) should be false")
	}
	other, _ := NewSparseBool(3, 3, 10)
	_ = other.Set(1, 2)
	_ = other.Set(3, 1)
	if !s.Equal(other) {
		t.Fatal("capacity must not affect equality")
	}
}

func TestIntKind(t *testing.T) {
	if k := NewIntScalar[uint16](1).Kind(); k != KindUint16 {
		t.Fatalf("kind = %v", k)
	}
	if NewIntScalar[uint8](1).Signed() {
		t.Fatal("uint8 is unsigned")
	}
	if !NewIntScalar[int64](1).Signed() {
		t.Fatal("int64 is signed")
	}
}

func TestArray_ExtentOverflow(t *testing.T) {
	for _, dims := range [][]int{
		{1 << 32, 1 << 32},
		{math.MaxInt, 2},
		{2, -1},
	} {
		if _, err := NewMatrix(nil, dims...); !octerr.Is(err, octerr.KindUsage) {
			t.Errorf("NewMatrix(%v): err = %v, want usage failure", dims, err)
		}
	}
	m := NewScalar(1)
	if err := m.Resize(1<<32, 1<<32); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("Resize overflow: err = %v", err)
	}
	if got := m.Dims(); !slices.Equal(got, []int{1, 1}) {
		t.Fatalf("failed resize changed dims to %v", got)
	}
	if n, ok := ElementCount([]int{3, 0, 1 << 40}); !ok || n != 0 {
		t.Fatalf("ElementCount with a zero extent = %d, %v", n, ok)
	}
}

func TestCell_DataIsCopied(t *testing.T) {
	c, err := NewCellOf([]Value{NewScalar(1)}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := c.Data()
	if err := got[0].(*Matrix).Set(9, 1, 1); err != nil {
		t.Fatal(err)
	}
	v, _ := c.At(1, 1)
	if !v.Equal(NewScalar(1)) {
		t.Fatalf("mutating Data() changed the cell: %v", v)
	}
}
