package process

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"octbridge/internal/octerr"
)

// SentinelReader exposes the interpreter's output up to, but not including,
// a sentinel line. The sentinel is printed as "\n<sentinel>\n", so the line
// break in front of it belongs to the protocol: line breaks are restored
// before every line except the first, which yields the payload byte for
// byte.
type SentinelReader struct {
	br       *bufio.Reader
	sentinel string
	pending  string
	started  bool
	done     bool
	err      error
	n        int64
}

// NewSentinelReader reads br until a line equal to sentinel.
func NewSentinelReader(br *bufio.Reader, sentinel string) *SentinelReader {
	return &SentinelReader{br: br, sentinel: sentinel}
}

// Read implements io.Reader. It returns io.EOF once the sentinel line has
// been consumed and never reads past it. Running out of data before the
// sentinel is a transport failure.
func (r *SentinelReader) Read(p []byte) (int, error) {
	for r.pending == "" {
		if r.done {
			return 0, io.EOF
		}
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	r.n += int64(n)
	return n, nil
}

func (r *SentinelReader) fill() {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.err = octerr.IO("read", io.ErrUnexpectedEOF, "interpreter output ended before sentinel")
		} else {
			r.err = octerr.IO("read", err, "reading interpreter output")
		}
		return
	}
	line = strings.TrimSuffix(line, "\n")
	if strings.TrimSuffix(line, "\r") == r.sentinel {
		r.done = true
		return
	}
	if r.started {
		r.pending = "\n" + line
	} else {
		r.pending = line
	}
	r.started = true
}

// Close consumes everything up to the sentinel. Bytes still buffered after
// it mean the stream is out of step with the protocol.
func (r *SentinelReader) Close() error {
	for !r.done {
		if r.err != nil {
			return r.err
		}
		r.pending = ""
		r.fill()
	}
	r.pending = ""
	if n := r.br.Buffered(); n > 0 {
		peek, _ := r.br.Peek(min(n, 64))
		return octerr.IO("read", nil, "%d unexpected bytes after sentinel: %q", n, peek)
	}
	return nil
}

// Count returns the number of payload bytes delivered by Read.
func (r *SentinelReader) Count() int64 { return r.n }
