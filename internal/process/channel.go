// Package process runs the interpreter as a child process and frames every
// request/response pair on its stdin/stdout with a random sentinel line.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"octbridge/internal/octerr"
	"octbridge/internal/trace"
)

// State is the lifecycle position of a Channel.
type State uint8

const (
	StateNotStarted State = iota
	StateRunning
	StateClosing
	StateClosed
	StateDestroyed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Options configures the child process.
type Options struct {
	Path string   // executable
	Args []string // arguments after the executable
	Env  []string // nil inherits the parent environment
	Dir  string

	Stderr io.Writer // initial error sink; nil discards

	// InputTee and OutputTee receive copies of everything written to and
	// read from the interpreter. Their failures are ignored.
	InputTee  io.Writer
	OutputTee io.Writer

	// Encoding is the IANA charset the interpreter speaks; empty means UTF-8.
	Encoding string

	Tracer    trace.Tracer
	Heartbeat time.Duration // pending-exchange heartbeat interval; 0 disables

	// Observe is called after every exchange with the payload byte counts.
	Observe func(sent, received int64)
}

// WriteFunc produces the request of an exchange.
type WriteFunc func(w io.Writer) error

// ReadFunc consumes the response of an exchange. The reader ends at the
// sentinel; whatever the function leaves unread is discarded.
type ReadFunc func(r io.Reader) error

// Channel owns one interpreter process. Exchanges are serialised; Destroy
// may be called at any time from any goroutine.
type Channel struct {
	opts   Options
	tracer trace.Tracer

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	in     *bufio.Writer
	out    *bufio.Reader

	inTrace  *lineTracer
	outTrace *lineTracer

	exchangeMu sync.Mutex

	mu     sync.Mutex
	state  State
	broken error

	sinkMu  sync.Mutex
	errSink io.Writer

	stderrDone chan struct{}
	waitOnce   sync.Once
	waitErr    error
}

// Start launches the interpreter. The context only bounds the launch itself:
// the process outlives it.
func Start(ctx context.Context, opts Options) (*Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, &octerr.Error{Kind: octerr.KindState, Op: "start", Msg: "not started", Err: err}
	}
	if opts.Path == "" {
		return nil, octerr.Usage(nil, "no interpreter executable configured")
	}
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, octerr.Usage(nil, "%v", err)
	}
	c := &Channel{
		opts:       opts,
		tracer:     opts.Tracer,
		errSink:    opts.Stderr,
		stderrDone: make(chan struct{}),
	}
	if c.tracer == nil {
		c.tracer = trace.Nop
	}

	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir
	cmd.WaitDelay = time.Second
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, octerr.IO("start", err, "creating stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, octerr.IO("start", err, "creating stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, octerr.IO("start", err, "creating stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, octerr.IO("start", err, "starting %s", opts.Path)
	}
	c.cmd, c.stdin, c.stdout = cmd, stdin, stdout

	var inTee, outTee io.Writer = opts.InputTee, opts.OutputTee
	if c.tracer.Level().ShouldEmit(trace.ScopeIO) {
		c.inTrace = &lineTracer{tracer: c.tracer, name: "stdin"}
		c.outTrace = &lineTracer{tracer: c.tracer, name: "stdout"}
		inTee = teeOf(inTee, c.inTrace)
		outTee = teeOf(outTee, c.outTrace)
	}

	var w io.Writer = encodeWriter(stdin, enc)
	if t := teeOf(inTee); t != nil {
		w = io.MultiWriter(w, t)
	}
	c.in = bufio.NewWriter(w)

	r := decodeReader(stdout, enc)
	if t := teeOf(outTee); t != nil {
		r = io.TeeReader(r, t)
	}
	c.out = bufio.NewReader(r)

	c.state = StateRunning
	go c.drainStderr(decodeReader(stderr, enc))
	trace.Point(c.tracer, trace.ScopeSession, "start", 0, fmt.Sprintf("pid %d: %s %s", cmd.Process.Pid, opts.Path, strings.Join(opts.Args, " ")))
	return c, nil
}

// drainStderr forwards the interpreter's stderr to the current sink until
// the stream ends. It always reads, so the child never blocks on a full
// stderr pipe.
func (c *Channel) drainStderr(r io.Reader) {
	defer close(c.stderrDone)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.sinkMu.Lock()
			if c.errSink != nil {
				_, _ = c.errSink.Write(buf[:n])
			}
			c.sinkMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// SetErrorSink redirects the interpreter's stderr. nil discards it.
func (c *Channel) SetErrorSink(w io.Writer) {
	c.sinkMu.Lock()
	c.errSink = w
	c.sinkMu.Unlock()
}

// State returns the lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Broken returns the failure that made the channel unusable, if any.
func (c *Channel) Broken() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// Pid returns the child's process id.
func (c *Channel) Pid() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *Channel) usable(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRunning:
		return c.broken
	case StateDestroyed:
		return octerr.State(op, true, "interpreter was destroyed")
	default:
		return octerr.State(op, false, "interpreter is %s", c.state)
	}
}

func (c *Channel) destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateDestroyed
}

// Exchange runs write and read concurrently against the interpreter. A fresh
// sentinel print is queued after write's payload, and read sees the output
// up to that sentinel. The reader is always drained to the sentinel, so a
// failure inside read leaves the stream in step. Failures that leave the
// stream in an unknown position break the channel for good.
func (c *Channel) Exchange(ctx context.Context, write WriteFunc, read ReadFunc) error {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if err := c.usable("exchange"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &octerr.Error{Kind: octerr.KindUsage, Op: "exchange", Msg: "cancelled before start", Err: err}
	}

	sentinel := uuid.NewString()
	span := trace.Begin(c.tracer, trace.ScopeExchange, "exchange", trace.CurrentSpan(ctx))
	span.WithExtra("sentinel", sentinel)
	if c.inTrace != nil {
		c.inTrace.setParent(span.ID())
		c.outTrace.setParent(span.ID())
	}
	hb := trace.StartHeartbeat(c.tracer, c.opts.Heartbeat, span.ID())

	var sent, received int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		n, err := c.writeTask(gctx, write, sentinel)
		sent = n
		return err
	})
	g.Go(func() error {
		n, err := c.readTask(gctx, read, sentinel)
		received = n
		return err
	})
	err := g.Wait()
	hb.Stop()

	if err != nil && c.destroyed() {
		err = octerr.MarkDestroyed(err)
	}
	if err != nil && !octerr.Recoverable(err) {
		c.mu.Lock()
		if c.broken == nil && c.state == StateRunning {
			c.broken = err
		}
		c.mu.Unlock()
	}
	span.WithExtra("sent", fmt.Sprint(sent)).WithExtra("received", fmt.Sprint(received))
	span.EndErr(err)
	if c.opts.Observe != nil {
		c.opts.Observe(sent, received)
	}
	return err
}

// writeTask sends the payload, then the sentinel print. The sentinel is sent
// even when the payload fails so the reader can still terminate.
func (c *Channel) writeTask(ctx context.Context, write WriteFunc, sentinel string) (int64, error) {
	cw := &countingWriter{w: c.in}
	var werr error
	if write != nil && ctx.Err() == nil {
		werr = write(cw)
	}
	_, serr := fmt.Fprintf(c.in, "\nprintf(\"\\n%%s\\n\", \"%s\");\n", sentinel)
	if serr == nil {
		serr = c.in.Flush()
	}
	if werr != nil {
		var oe *octerr.Error
		if !errors.As(werr, &oe) {
			werr = octerr.IO("write", werr, "sending request")
		}
		return cw.n, werr
	}
	if serr != nil {
		return cw.n, octerr.IO("write", serr, "sending sentinel")
	}
	return cw.n, nil
}

// readTask hands the sentinel-bounded output to read and drains what is
// left. A transport failure while draining wins over read's own error.
func (c *Channel) readTask(ctx context.Context, read ReadFunc, sentinel string) (int64, error) {
	sr := NewSentinelReader(c.out, sentinel)
	var rerr error
	if read != nil && ctx.Err() == nil {
		rerr = read(sr)
	}
	if err := sr.Close(); err != nil {
		return sr.Count(), err
	}
	return sr.Count(), rerr
}

// Close asks the interpreter to exit and waits for it. At most one blank
// line may follow the exit request; any other output, or a non-zero exit
// status, is a failure.
func (c *Channel) Close() error {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	c.mu.Lock()
	if c.state != StateRunning {
		st := c.state
		c.mu.Unlock()
		return octerr.State("close", st == StateDestroyed, "interpreter is %s", st)
	}
	broken := c.broken
	c.state = StateClosing
	c.mu.Unlock()

	var err error
	if broken != nil {
		c.kill()
		err = broken
	} else {
		err = c.shutdown()
	}

	c.mu.Lock()
	if c.state == StateClosing {
		c.state = StateClosed
	} else if c.state == StateDestroyed {
		err = octerr.MarkDestroyed(err)
	}
	c.mu.Unlock()
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	trace.Point(c.tracer, trace.ScopeSession, "close", 0, detail)
	return err
}

func (c *Channel) shutdown() error {
	if _, err := c.in.WriteString("exit\n"); err != nil {
		return octerr.IO("close", err, "sending exit")
	}
	if err := c.in.Flush(); err != nil {
		return octerr.IO("close", err, "sending exit")
	}
	if err := c.stdin.Close(); err != nil {
		return octerr.IO("close", err, "closing stdin")
	}

	trailing, err := c.trailing()
	if err != nil {
		return err
	}
	<-c.stderrDone
	if err := c.wait(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return octerr.IO("close", err, "interpreter exited with status %d", ee.ExitCode())
		}
		return octerr.IO("close", err, "waiting for interpreter")
	}
	if trailing != "" {
		return octerr.IO("close", nil, "unexpected output after exit: %q", trailing)
	}
	return nil
}

// trailing reads stdout to its end. One blank line is tolerated; anything
// else is returned.
func (c *Channel) trailing() (string, error) {
	rest, err := io.ReadAll(c.out)
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return "", octerr.IO("close", err, "reading final output")
	}
	s := string(rest)
	if s == "\n" || s == "\r\n" {
		s = ""
	}
	return s, nil
}

func (c *Channel) wait() error {
	c.waitOnce.Do(func() { c.waitErr = c.cmd.Wait() })
	return c.waitErr
}

func (c *Channel) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.stdout != nil {
		_ = c.stdout.Close()
	}
	if c.cmd != nil {
		_ = c.wait()
	}
}

// Destroy kills the interpreter and releases its pipes. Pending and later
// operations fail with errors marked as destroyed. It is idempotent.
func (c *Channel) Destroy() {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return
	}
	c.state = StateDestroyed
	c.mu.Unlock()
	c.kill()
	trace.Point(c.tracer, trace.ScopeSession, "destroy", 0, "")
}
