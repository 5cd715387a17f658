package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"octbridge/internal/value"
)

// Printer renders values for a terminal, roughly the way the interpreter
// displays them: a heading, then a column-aligned grid per 2-D page.
type Printer struct {
	Color bool
	Width int // truncation width for text; 0 means unlimited
}

var (
	nameStyle = lipgloss.NewStyle().Bold(true)
	kindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	textStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func (p Printer) style(s lipgloss.Style, text string) string {
	if !p.Color {
		return text
	}
	return s.Render(text)
}

// Render returns the display of v under name, ending in a newline.
func (p Printer) Render(name string, v value.Value) string {
	var b strings.Builder
	p.render(&b, name, v, "")
	return b.String()
}

func (p Printer) render(b *strings.Builder, name string, v value.Value, indent string) {
	heading := indent + p.style(nameStyle, name) + " ="
	if v == nil {
		b.WriteString(heading + " <nil>\n")
		return
	}
	kind := p.style(kindStyle, "<"+v.Kind().String()+">")

	switch x := v.(type) {
	case value.Text:
		s := string(x)
		if p.Width > 0 {
			s = truncate(s, p.Width)
		}
		fmt.Fprintf(b, "%s %s\n", heading, p.style(textStyle, s))
	case *value.Struct:
		fmt.Fprintf(b, "%s %s\n", heading, kind)
		keys := x.Keys()
		w := 0
		for _, k := range keys {
			w = max(w, runewidth.StringWidth(k))
		}
		for _, k := range keys {
			f, _ := x.Get(k)
			p.render(b, runewidth.FillRight(k, w), f, indent+"  ")
		}
	case *value.Cell:
		dims := x.Dims()
		fmt.Fprintf(b, "%s %s %s\n", heading, kind, dimString(dims))
		raw := x.Raw()
		for i, elem := range raw {
			label := "{" + joinInts(coordsOf(i, dims), ",") + "}"
			p.render(b, label, elem, indent+"  ")
		}
	case *value.SparseBool:
		fmt.Fprintf(b, "%s %s %dx%d, %d set\n", heading, kind, x.Rows(), x.Cols(), x.NNZ())
		for _, e := range x.Entries() {
			fmt.Fprintf(b, "%s  (%d,%d) 1\n", indent, e.Row, e.Col)
		}
	case *value.FunctionHandle:
		fmt.Fprintf(b, "%s %s\n", heading, x.Source)
	case *value.Range:
		var body []string
		for _, line := range strings.Split(x.Raw, "\n") {
			if !strings.HasPrefix(line, "#") {
				body = append(body, strings.Fields(line)...)
			}
		}
		fmt.Fprintf(b, "%s %s %s\n", heading, kind, strings.Join(body, " "))
	default:
		dims, cells, ok := numericCells(v)
		if !ok {
			fmt.Fprintf(b, "%s %s\n", heading, kind)
			return
		}
		if len(cells) == 1 {
			fmt.Fprintf(b, "%s %s\n", heading, cells[0])
			return
		}
		fmt.Fprintf(b, "%s %s %s\n", heading, kind, dimString(dims))
		writeGrid(b, dims, cells, indent+"  ")
	}
}

// numericCells formats every element of a dense numeric or logical array
// in column-major order.
func numericCells(v value.Value) ([]int, []string, bool) {
	switch x := v.(type) {
	case *value.Matrix:
		return x.Dims(), mapCells(x.Raw(), formatReal), true
	case *value.BoolMatrix:
		return x.Dims(), mapCells(x.Raw(), func(b bool) string {
			if b {
				return "1"
			}
			return "0"
		}), true
	case *value.ComplexMatrix:
		return x.Dims(), mapCells(x.Raw(), formatComplex), true
	case *value.IntMatrix[int8]:
		return x.Dims(), mapCells(x.Raw(), formatInt[int8]), true
	case *value.IntMatrix[int16]:
		return x.Dims(), mapCells(x.Raw(), formatInt[int16]), true
	case *value.IntMatrix[int32]:
		return x.Dims(), mapCells(x.Raw(), formatInt[int32]), true
	case *value.IntMatrix[int64]:
		return x.Dims(), mapCells(x.Raw(), formatInt[int64]), true
	case *value.IntMatrix[uint8]:
		return x.Dims(), mapCells(x.Raw(), formatInt[uint8]), true
	case *value.IntMatrix[uint16]:
		return x.Dims(), mapCells(x.Raw(), formatInt[uint16]), true
	case *value.IntMatrix[uint32]:
		return x.Dims(), mapCells(x.Raw(), formatInt[uint32]), true
	}
	return nil, nil, false
}

func mapCells[T any](raw []T, f func(T) string) []string {
	out := make([]string, len(raw))
	for i, x := range raw {
		out[i] = f(x)
	}
	return out
}

func formatInt[T value.Integer](x T) string { return fmt.Sprint(x) }

func formatReal(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(x, 'g', 6, 64)
}

func formatComplex(c complex128) string {
	im := imag(c)
	sign := "+"
	if im < 0 || math.IsInf(im, -1) {
		sign = "-"
		im = -im
	}
	return formatReal(real(c)) + sign + formatReal(im) + "i"
}

// writeGrid prints one right-aligned 2-D grid per page of a column-major
// array.
func writeGrid(b *strings.Builder, dims []int, cells []string, indent string) {
	rows, cols := dims[0], dims[1]
	page := rows * cols
	if page == 0 {
		return
	}
	pages := len(cells) / page
	for pg := range pages {
		if pages > 1 {
			fmt.Fprintf(b, "%s(:,:,%s)\n", indent, joinInts(coordsOf(pg*page, dims)[2:], ","))
		}
		widths := make([]int, cols)
		for c := range cols {
			for r := range rows {
				widths[c] = max(widths[c], runewidth.StringWidth(cells[pg*page+c*rows+r]))
			}
		}
		for r := range rows {
			b.WriteString(indent)
			for c := range cols {
				if c > 0 {
					b.WriteString("  ")
				}
				b.WriteString(runewidth.FillLeft(cells[pg*page+c*rows+r], widths[c]))
			}
			b.WriteString("\n")
		}
	}
}

// coordsOf converts a column-major offset into 1-based coordinates.
func coordsOf(offset int, dims []int) []int {
	coords := make([]int, len(dims))
	for i, d := range dims {
		if d == 0 {
			continue
		}
		coords[i] = offset%d + 1
		offset /= d
	}
	return coords
}

func dimString(dims []int) string { return joinInts(dims, "x") }

func joinInts(xs []int, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, sep)
}
