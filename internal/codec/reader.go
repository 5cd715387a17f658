package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

// preallocLimit caps how many elements a header alone may allocate. Larger
// bodies grow as their lines arrive.
const preallocLimit = 1 << 16

// Reader reads the line-oriented wire format with one line of lookahead.
type Reader struct {
	br     *bufio.Reader
	peek   string
	peeked bool
	eof    bool
	line   int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{br: br}
	}
	return &Reader{br: bufio.NewReader(r)}
}

// next returns the next physical line without its terminator, or io.EOF.
func (r *Reader) next() (string, error) {
	if r.peeked {
		r.peeked = false
		r.line++
		return r.peek, nil
	}
	if r.eof {
		return "", io.EOF
	}
	s, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		r.eof = true
		if s == "" {
			return "", io.EOF
		}
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	r.line++
	return s, nil
}

// ReadLine returns the next line. Running out of data inside a record is a
// parse failure; transport errors pass through unchanged.
func (r *Reader) ReadLine() (string, error) {
	s, err := r.next()
	if errors.Is(err, io.EOF) {
		return "", r.errorf("unexpected end of data")
	}
	return s, err
}

// PeekLine returns the next line without consuming it. It returns io.EOF at
// the end of data.
func (r *Reader) PeekLine() (string, error) {
	if r.peeked {
		return r.peek, nil
	}
	s, err := r.next()
	if err != nil {
		return "", err
	}
	r.line--
	r.peek, r.peeked = s, true
	return s, nil
}

// SkipBlank consumes empty lines. Reaching the end of data is not an error.
func (r *Reader) SkipBlank() error {
	for {
		s, err := r.PeekLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(s) != "" {
			return nil
		}
		if _, err := r.next(); err != nil {
			return err
		}
	}
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int { return r.line }

func (r *Reader) errorf(format string, args ...any) error {
	return octerr.Parse("line %d: %s", r.line, fmt.Sprintf(format, args...))
}

// expect reads a line that must equal want.
func (r *Reader) expect(want string) error {
	s, err := r.ReadLine()
	if err != nil {
		return err
	}
	if s != want {
		return r.errorf("expected %q, got %q", want, s)
	}
	return nil
}

// header reads a "# key: value" line and returns value.
func (r *Reader) header(key string) (string, error) {
	s, err := r.ReadLine()
	if err != nil {
		return "", err
	}
	prefix := "# " + key + ": "
	v, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return "", r.errorf("expected %q, got %q", prefix, s)
	}
	return v, nil
}

// headerInt reads a "# key: N" line with a non-negative N.
func (r *Reader) headerInt(key string) (int, error) {
	v, err := r.header(key)
	if err != nil {
		return 0, err
	}
	return r.count(v, key)
}

func (r *Reader) count(s, what string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, r.errorf("invalid %s %q", what, s)
	}
	c, err := safecast.Conv[int](n)
	if err != nil {
		return 0, r.errorf("%s %q out of range: %v", what, s, err)
	}
	return c, nil
}

// dimsLine reads the extents line that follows "# ndims: N".
func (r *Reader) dimsLine(rank int) ([]int, error) {
	s, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(s)
	if len(fields) != rank || rank < 2 {
		return nil, r.errorf("expected %d extents, got %q", rank, s)
	}
	dims := make([]int, rank)
	for i, f := range fields {
		if dims[i], err = r.count(f, "extent"); err != nil {
			return nil, err
		}
	}
	return dims, nil
}

// elementCount multiplies the extents, failing when the product overflows.
func (r *Reader) elementCount(dims []int) (int, error) {
	n, ok := value.ElementCount(dims)
	if !ok {
		return 0, r.errorf("extents %v overflow the element count", dims)
	}
	return n, nil
}

// readRaw reads exactly n bytes followed by a newline. Line breaks and
// carriage returns inside the n bytes are kept as they are.
func (r *Reader) readRaw(n int) (string, error) {
	if r.peeked {
		return "", r.errorf("raw read with a line of lookahead pending")
	}
	var sb strings.Builder
	sb.Grow(min(n, preallocLimit))
	got, err := io.CopyN(&sb, r.br, int64(n))
	s := sb.String()
	r.line += strings.Count(s, "\n")
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return "", r.errorf("unexpected end of data after %d of %d bytes", got, n)
		}
		return "", err
	}
	r.line++
	b, err := r.br.ReadByte()
	switch {
	case errors.Is(err, io.EOF):
		r.eof = true
	case err != nil:
		return "", err
	case b != '\n':
		return "", r.errorf("expected end of line after %d bytes, got %q", n, b)
	}
	return s, nil
}
