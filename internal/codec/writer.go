package codec

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Writer is a line writer that remembers the first error, so encoders can
// write unconditionally and check once.
type Writer struct {
	w   io.Writer
	n   int64
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteString writes s unless an earlier write failed.
func (w *Writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	n, err := io.WriteString(w.w, s)
	w.n += int64(n)
	w.err = err
}

// Printf formats and writes.
func (w *Writer) Printf(format string, args ...any) {
	w.WriteString(fmt.Sprintf(format, args...))
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

// Written returns the number of bytes written.
func (w *Writer) Written() int64 { return w.n }

// FormatFloat renders a double the way the interpreter reads it back
// exactly: NaN, Inf, -Inf, or the shortest round-trip decimal with a ".0"
// suffix on integral values (43 -> "43.0").
func FormatFloat(d float64) string {
	switch {
	case math.IsNaN(d):
		return "NaN"
	case math.IsInf(d, 1):
		return "Inf"
	case math.IsInf(d, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(d, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ParseFloat reads a double as the interpreter writes it, including NA,
// which is read as NaN.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatComplex(c complex128) string {
	return "(" + FormatFloat(real(c)) + "," + FormatFloat(imag(c)) + ")"
}

func parseComplex(s string) (complex128, error) {
	s = strings.TrimSpace(s)
	inner, ok := strings.CutPrefix(s, "(")
	if ok {
		inner, ok = strings.CutSuffix(inner, ")")
	}
	if !ok {
		return 0, fmt.Errorf("complex value %q is not parenthesised", s)
	}
	re, im, ok := strings.Cut(inner, ",")
	if !ok {
		return 0, fmt.Errorf("complex value %q has no imaginary part", s)
	}
	r, err := ParseFloat(re)
	if err != nil {
		return 0, err
	}
	i, err := ParseFloat(im)
	if err != nil {
		return 0, err
	}
	return complex(r, i), nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid logical value %q", s)
}
