// Package session is the public face of the bridge: one interpreter process,
// typed variable transfer and script evaluation with or without error
// isolation.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"octbridge/internal/codec"
	"octbridge/internal/config"
	"octbridge/internal/exchange"
	"octbridge/internal/observ"
	"octbridge/internal/octerr"
	"octbridge/internal/process"
	"octbridge/internal/trace"
	"octbridge/internal/value"
)

const tempPrefix = "octbridge_"

// Option adjusts how Open builds the session.
type Option func(*settings)

type settings struct {
	opts   process.Options
	reg    *codec.Registry
	timer  *observ.Timer
	output io.Writer
}

// WithCommand replaces the configured executable, arguments and environment.
func WithCommand(path string, args, env []string) Option {
	return func(s *settings) {
		s.opts.Path, s.opts.Args, s.opts.Env = path, args, env
	}
}

// WithTracer sets the tracer. By default the tracer of Open's context is used.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.opts.Tracer = t }
}

// WithHeartbeat emits a heartbeat for exchanges pending longer than d.
func WithHeartbeat(d time.Duration) Option {
	return func(s *settings) { s.opts.Heartbeat = d }
}

// WithTimer records phases and traffic into t.
func WithTimer(t *observ.Timer) Option {
	return func(s *settings) { s.timer = t }
}

// WithRegistry replaces the codec registry.
func WithRegistry(reg *codec.Registry) Option {
	return func(s *settings) { s.reg = reg }
}

// WithOutput sets the initial interpreter output sink.
func WithOutput(w io.Writer) Option {
	return func(s *settings) { s.output = w }
}

// WithErrorOutput sets the initial sink for the interpreter's stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(s *settings) { s.opts.Stderr = w }
}

// WithTee copies the raw traffic to in and out.
func WithTee(in, out io.Writer) Option {
	return func(s *settings) { s.opts.InputTee, s.opts.OutputTee = in, out }
}

// Session drives one interpreter. Calls are serialised by the channel;
// Destroy may be called from any goroutine to abandon a hung call.
type Session struct {
	ch     *process.Channel
	x      *exchange.Exchange
	tracer trace.Tracer
	timer  *observ.Timer
	span   *trace.Span
	ended  sync.Once

	outMu  sync.Mutex
	output io.Writer
}

// Open starts the interpreter described by cfg.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	path, args, env := cfg.Octave.Command()
	st := settings{
		opts: process.Options{
			Path:     path,
			Args:     args,
			Env:      env,
			Dir:      cfg.Octave.Dir,
			Encoding: cfg.Octave.Encoding,
		},
	}
	if tc, err := cfg.Trace.Tracer(); err == nil {
		st.opts.Heartbeat = tc.Heartbeat
	}
	for _, opt := range opts {
		opt(&st)
	}
	if st.opts.Tracer == nil {
		st.opts.Tracer = trace.FromContext(ctx)
	}
	timer := st.timer
	if timer == nil {
		timer = observ.NewTimer()
	}
	st.opts.Observe = timer.Exchange

	span := trace.Begin(st.opts.Tracer, trace.ScopeSession, "session", trace.CurrentSpan(ctx))
	ch, err := process.Start(ctx, st.opts)
	if err != nil {
		span.EndErr(err)
		return nil, err
	}
	span.WithExtra("pid", fmt.Sprint(ch.Pid()))
	return &Session{
		ch:     ch,
		x:      exchange.New(ch, st.reg),
		tracer: st.opts.Tracer,
		timer:  timer,
		span:   span,
		output: st.output,
	}, nil
}

// Timer returns the session's phase timer.
func (s *Session) Timer() *observ.Timer { return s.timer }

// State returns the lifecycle state of the underlying process.
func (s *Session) State() process.State { return s.ch.State() }

// SetOutput redirects interpreter output produced by evaluation. nil
// discards it.
func (s *Session) SetOutput(w io.Writer) {
	s.outMu.Lock()
	s.output = w
	s.outMu.Unlock()
}

// SetErrorOutput redirects the interpreter's stderr. nil discards it.
func (s *Session) SetErrorOutput(w io.Writer) { s.ch.SetErrorSink(w) }

func (s *Session) currentOutput() io.Writer {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.output == nil {
		return io.Discard
	}
	return s.output
}

// begin opens a trace span and a timer phase for one facade call.
func (s *Session) begin(ctx context.Context, name string) (context.Context, func(error)) {
	parent := trace.CurrentSpan(ctx)
	if parent == 0 {
		parent = s.span.ID()
	}
	span := trace.Begin(s.tracer, trace.ScopeSession, name, parent)
	idx := s.timer.Begin(name)
	return trace.WithSpan(ctx, span), func(err error) {
		span.EndErr(err)
		note := ""
		if err != nil {
			note = "failed: " + octerr.KindOf(err).String()
		}
		s.timer.End(idx, note)
	}
}

// EvalUnsafe sends script as is. Its output goes to the output sink. A
// script error makes the interpreter quit, which breaks the session.
func (s *Session) EvalUnsafe(ctx context.Context, script string) (err error) {
	ctx, done := s.begin(ctx, "eval-unsafe")
	defer func() { done(err) }()
	return s.evalUnsafe(ctx, script)
}

// sinkWriter forwards to the output sink and remembers its first failure
// instead of failing the exchange.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	if s.err == nil {
		_, s.err = s.w.Write(p)
	}
	return len(p), nil
}

func (s *Session) evalUnsafe(ctx context.Context, script string) error {
	sink := &sinkWriter{w: s.currentOutput()}
	err := s.ch.Exchange(ctx,
		func(w io.Writer) error {
			if _, err := io.WriteString(w, script); err != nil {
				return err
			}
			if !strings.HasSuffix(script, "\n") {
				_, err := io.WriteString(w, "\n")
				return err
			}
			return nil
		},
		func(r io.Reader) error {
			_, err := io.Copy(sink, r)
			return err
		})
	if err != nil {
		return err
	}
	if sink.err != nil {
		return &octerr.Error{Kind: octerr.KindUsage, Op: "eval", Msg: "output sink failed", Err: sink.err}
	}
	return nil
}

// Eval runs script so that a script error is caught inside the interpreter
// and reported as a recoverable KindEval failure.
func (s *Session) Eval(ctx context.Context, script string) (err error) {
	ctx, done := s.begin(ctx, "eval")
	defer func() { done(err) }()

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	src, msg := tempPrefix+id, tempPrefix+id+"_err"

	if err := s.x.SetAll(ctx, map[string]value.Value{
		src: value.Text(script),
		msg: value.Text(""),
	}); err != nil {
		return err
	}
	defer func() {
		// A broken channel cannot run the cleanup; the original failure wins.
		if !octerr.Recoverable(err) {
			return
		}
		if cerr := s.x.Clear(ctx, src, msg); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := s.evalUnsafe(ctx, fmt.Sprintf("eval(%s, \"%s = lasterr();\");\n", src, msg)); err != nil {
		return err
	}
	v, ok, err := s.x.Get(ctx, msg)
	if err != nil {
		return err
	}
	if !ok {
		// The script cleared the workspace; the catch string never ran.
		return nil
	}
	text, ok := v.(value.Text)
	if !ok {
		return octerr.Parse("error message variable holds %s, not text", v.Kind())
	}
	if text != "" {
		return octerr.Eval(string(text))
	}
	return nil
}

// Put assigns one variable.
func (s *Session) Put(ctx context.Context, name string, v value.Value) error {
	return s.PutAll(ctx, map[string]value.Value{name: v})
}

// PutAll assigns every variable in one round trip.
func (s *Session) PutAll(ctx context.Context, vars map[string]value.Value) (err error) {
	ctx, done := s.begin(ctx, "put")
	defer func() { done(err) }()
	return s.x.SetAll(ctx, vars)
}

// Get reads a variable. An undefined name yields (nil, false, nil).
func (s *Session) Get(ctx context.Context, name string) (v value.Value, ok bool, err error) {
	ctx, done := s.begin(ctx, "get")
	defer func() { done(err) }()
	return s.x.Get(ctx, name)
}

// Exists reports whether name is a defined variable.
func (s *Session) Exists(ctx context.Context, name string) (ok bool, err error) {
	ctx, done := s.begin(ctx, "exists")
	defer func() { done(err) }()
	return s.x.Exists(ctx, name)
}

// Clear removes variables from the interpreter's workspace.
func (s *Session) Clear(ctx context.Context, names ...string) (err error) {
	ctx, done := s.begin(ctx, "clear")
	defer func() { done(err) }()
	return s.x.Clear(ctx, names...)
}

// GetAs reads a variable that must be a T. An undefined variable and a
// value of another kind are both KindCast failures; the latter carries the
// value read.
func GetAs[T value.Value](ctx context.Context, s *Session, name string) (T, error) {
	var zero T
	v, ok, err := s.Get(ctx, name)
	if err != nil {
		return zero, err
	}
	want := fmt.Sprintf("%T", zero)
	if !ok {
		return zero, &octerr.Error{Kind: octerr.KindCast, Op: "get", Msg: fmt.Sprintf("%s is undefined, not %s", name, want)}
	}
	t, ok := v.(T)
	if !ok {
		return zero, octerr.Cast(v, want)
	}
	return t, nil
}

// Version returns the interpreter's version string.
func (s *Session) Version(ctx context.Context) (ver string, err error) {
	ctx, done := s.begin(ctx, "version")
	defer func() { done(err) }()
	var sb strings.Builder
	err = s.ch.Exchange(ctx,
		func(w io.Writer) error {
			_, err := io.WriteString(w, "printf(\"%s\", OCTAVE_VERSION);\n")
			return err
		},
		func(r io.Reader) error {
			_, err := io.Copy(&sb, r)
			return err
		})
	if err != nil {
		return "", err
	}
	ver = strings.TrimSpace(sb.String())
	if ver == "" {
		return "", octerr.Parse("interpreter reported an empty version")
	}
	return ver, nil
}

// Close asks the interpreter to exit and waits for it.
func (s *Session) Close() (err error) {
	_, done := s.begin(context.Background(), "close")
	defer func() {
		done(err)
		s.endSpan(err)
	}()
	return s.ch.Close()
}

// Destroy kills the interpreter. Any call blocked on it fails with a
// destroyed error. The session cannot be used afterwards.
func (s *Session) Destroy() {
	s.ch.Destroy()
	s.endSpan(octerr.State("destroy", true, "destroyed"))
}

func (s *Session) endSpan(err error) {
	s.ended.Do(func() { s.span.EndErr(err) })
}
