package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelShouldEmit(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeSession, false},
		{LevelError, ScopeSession, false},
		{LevelPhase, ScopeSession, true},
		{LevelPhase, ScopeExchange, false},
		{LevelDetail, ScopeExchange, true},
		{LevelDetail, ScopeIO, false},
		{LevelDebug, ScopeIO, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "error", "phase", "detail", "debug"} {
		l, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if l.String() != s {
			t.Errorf("ParseLevel(%q).String() = %q", s, l)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestStreamTracerNesting(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)

	outer := Begin(tr, ScopeSession, "eval", 0)
	inner := Begin(tr, ScopeExchange, "exchange", outer.ID())
	Point(tr, ScopeIO, "stdin", inner.ID(), "dropped at detail")
	inner.WithExtra("sentinel", "abc").End("")
	outer.End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "→ session/eval") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "  → exchange/exchange") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "{sentinel=abc}") {
		t.Errorf("line 2 = %q", lines[2])
	}
	if !strings.Contains(lines[3], "← session/eval (ok)") {
		t.Errorf("line 3 = %q", lines[3])
	}
}

func TestNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	Begin(tr, ScopeSession, "get", 0).End("ok")

	dec := json.NewDecoder(&buf)
	var kinds []string
	for dec.More() {
		var ev map[string]any
		if err := dec.Decode(&ev); err != nil {
			t.Fatal(err)
		}
		kinds = append(kinds, ev["kind"].(string))
		if ev["name"] != "get" {
			t.Errorf("name = %v", ev["name"])
		}
	}
	if strings.Join(kinds, ",") != "begin,end" {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestDisabledSpan(t *testing.T) {
	tr := NewRingTracer(8, LevelPhase)
	s := Begin(tr, ScopeExchange, "exchange", 7)
	if s.ID() != 7 {
		t.Fatalf("unrecorded span ID = %d, want parent 7", s.ID())
	}
	if d := s.End(""); d != 0 {
		t.Fatalf("unrecorded span duration = %v", d)
	}
	if n := len(tr.Snapshot()); n != 0 {
		t.Fatalf("ring holds %d events", n)
	}
}

func TestRingWraps(t *testing.T) {
	tr := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(tr, ScopeIO, name, 0, "")
	}
	var names []string
	for _, ev := range tr.Snapshot() {
		names = append(names, ev.Name)
	}
	if strings.Join(names, "") != "cde" {
		t.Fatalf("snapshot = %v, want [c d e]", names)
	}
}

func TestMultiRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDetail, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopeSession, "put", 0).End("")
	ring := RingOf(tr)
	if ring == nil {
		t.Fatal("ModeBoth tracer has no ring")
	}
	if n := len(ring.Snapshot()); n != 2 {
		t.Fatalf("ring holds %d events, want 2", n)
	}
	if buf.Len() == 0 {
		t.Fatal("stream wrote nothing")
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("empty context should yield Nop")
	}
	tr := NewRingTracer(4, LevelPhase)
	ctx := WithTracer(context.Background(), tr)
	span := Begin(FromContext(ctx), ScopeSession, "eval", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() || span.ID() == 0 {
		t.Fatalf("CurrentSpan = %d, span = %d", CurrentSpan(ctx), span.ID())
	}
}

func TestHeartbeat(t *testing.T) {
	tr := NewRingTracer(16, LevelPhase)
	h := StartHeartbeat(tr, time.Millisecond, 0)
	time.Sleep(20 * time.Millisecond)
	h.Stop()
	h.Stop()
	if len(tr.Snapshot()) == 0 {
		t.Fatal("no heartbeat recorded")
	}
	if StartHeartbeat(Nop, time.Millisecond, 0) != nil {
		t.Fatal("heartbeat started on a disabled tracer")
	}
}
