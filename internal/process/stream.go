package process

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"octbridge/internal/trace"
)

// lookupEncoding resolves an IANA charset name. UTF-8 and the empty name
// need no transcoding and return nil.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}

func encodeWriter(w io.Writer, enc encoding.Encoding) io.Writer {
	if enc == nil {
		return w
	}
	return transform.NewWriter(w, enc.NewEncoder())
}

func decodeReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}

// quietWriter forwards to w and ignores its failures: a broken tee must not
// break the interpreter stream.
type quietWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (q *quietWriter) Write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, _ = q.w.Write(p)
	return len(p), nil
}

// lineTracer turns a byte stream into one ScopeIO trace point per line.
type lineTracer struct {
	tracer trace.Tracer
	name   string
	mu     sync.Mutex
	parent uint64
	buf    bytes.Buffer
}

func (l *lineTracer) setParent(id uint64) {
	l.mu.Lock()
	l.parent = id
	l.mu.Unlock()
}

func (l *lineTracer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(l.buf.Next(i + 1))
		trace.Point(l.tracer, trace.ScopeIO, l.name, l.parent, strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

// teeOf combines the optional tee targets into one error-free writer.
func teeOf(ws ...io.Writer) io.Writer {
	var live []io.Writer
	for _, w := range ws {
		if w != nil {
			live = append(live, w)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return &quietWriter{w: live[0]}
	}
	return &quietWriter{w: io.MultiWriter(live...)}
}

// countingWriter counts bytes handed to a write task's writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteString keeps io.WriteString on the buffered path.
func (c *countingWriter) WriteString(s string) (int, error) {
	n, err := io.WriteString(c.w, s)
	c.n += int64(n)
	return n, err
}
