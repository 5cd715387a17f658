package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"octbridge/internal/value"
)

func TestRenderMatrix(t *testing.T) {
	m, err := value.NewMatrix([]float64{1, 2.5, -10, 4}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := Printer{}.Render("m", m)
	want := "m = <matrix> 2x2\n" +
		"    1  -10\n" +
		"  2.5    4\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderScalarsAndText(t *testing.T) {
	p := Printer{Width: 8}
	cases := []struct {
		name string
		v    value.Value
		want string
	}{
		{"x", value.NewScalar(52), "x = 52\n"},
		{"b", value.NewBool(true), "b = 1\n"},
		{"n", value.NewIntScalar[int8](-7), "n = -7\n"},
		{"z", value.NewComplexScalar(complex(1, -2)), "z = 1-2i\n"},
		{"s", value.Text("a long sentence"), "s = a ...\n"},
		{"f", &value.FunctionHandle{Source: "@(x) x + 1"}, "f = @(x) x + 1\n"},
	}
	for _, tc := range cases {
		if got := p.Render(tc.name, tc.v); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRenderNested(t *testing.T) {
	st := value.NewStruct()
	if err := st.Set("id", value.NewScalar(3)); err != nil {
		t.Fatal(err)
	}
	if err := st.Set("label", value.Text("abc")); err != nil {
		t.Fatal(err)
	}
	c, err := value.NewCellOf([]value.Value{st, value.Text("x")}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := Printer{}.Render("c", c)
	want := "c = <cell> 1x2\n" +
		"  {1,1} = <struct>\n" +
		"    id    = 3\n" +
		"    label = abc\n" +
		"  {1,2} = x\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderPages(t *testing.T) {
	m, err := value.NewMatrix([]float64{1, 2, 3, 4}, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := Printer{}.Render("p", m)
	if !strings.Contains(got, "(:,:,1)\n  1  2\n") || !strings.Contains(got, "(:,:,2)\n  3  4\n") {
		t.Fatalf("pages missing:\n%s", got)
	}
}

func TestProgressModel(t *testing.T) {
	events := make(chan Event)
	m := NewProgressModel("run", []string{"a.m", "b.m"}, events).(*progressModel)

	m.Update(eventMsg{File: "a.m", Stage: StageEval, Status: StatusWorking})
	if m.items[0].status != "evaluating" {
		t.Fatalf("status = %q", m.items[0].status)
	}
	if got := m.percent(); got != 0.25 {
		t.Fatalf("percent = %v", got)
	}
	m.Update(eventMsg{File: "a.m", Stage: StageEval, Status: StatusDone, Elapsed: 1500 * time.Microsecond})
	m.Update(eventMsg{File: "b.m", Stage: StageEval, Status: StatusError, Err: errors.New("boom")})
	m.Update(eventMsg{File: "zzz.m", Status: StatusDone})
	if got := m.percent(); got != 1 {
		t.Fatalf("percent = %v", got)
	}
	if m.items[0].elapsed != "1.5 ms" {
		t.Errorf("elapsed = %q", m.items[0].elapsed)
	}

	_, cmd := m.Update(doneMsg{})
	if cmd == nil || !m.done {
		t.Fatal("done message did not quit")
	}
	view := m.View()
	for _, want := range []string{"done: run", "a.m", "b.m", "error"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	ChannelSink{Ch: ch}.OnEvent(Event{File: "x.m", Status: StatusQueued})
	if ev := <-ch; ev.File != "x.m" {
		t.Fatalf("event = %+v", ev)
	}
	ChannelSink{}.OnEvent(Event{})
	NopSink{}.OnEvent(Event{})
}
