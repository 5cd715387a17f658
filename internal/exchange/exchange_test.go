package exchange

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"octbridge/internal/codec"
	"octbridge/internal/octavetest"
	"octbridge/internal/octerr"
	"octbridge/internal/process"
	"octbridge/internal/value"
)

func TestMain(m *testing.M) {
	octavetest.Main()
	os.Exit(m.Run())
}

func startFake(t *testing.T) (*process.Channel, *Exchange) {
	t.Helper()
	path, args, env := octavetest.Command()
	ch, err := process.Start(context.Background(), process.Options{Path: path, Args: args, Env: env})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ch.Destroy)
	return ch, New(ch, nil)
}

// recorder captures the request of every exchange and answers with a fixed
// response.
type recorder struct {
	requests []string
	response string
	calls    int
}

func (r *recorder) Exchange(_ context.Context, write process.WriteFunc, read process.ReadFunc) error {
	r.calls++
	var sb strings.Builder
	if write != nil {
		if err := write(&sb); err != nil {
			return err
		}
	}
	r.requests = append(r.requests, sb.String())
	if read != nil {
		return read(strings.NewReader(r.response))
	}
	return nil
}

func TestSetAllWireFormat(t *testing.T) {
	rec := &recorder{}
	x := New(rec, codec.Default())
	err := x.SetAll(context.Background(), map[string]value.Value{
		"tre": value.NewScalar(43),
		"b":   value.Text("x"),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "load(\"-text\", \"-\");\n" +
		"# name: b\n# type: string\n# elements: 1\n# length: 1\nx\n" +
		"# name: tre\n# type: scalar\n43.0\n" +
		"# name: \n"
	if len(rec.requests) != 1 || rec.requests[0] != want {
		t.Fatalf("request = %q, want %q", rec.requests, want)
	}
}

func TestSetAllEncodeFailureSendsNothing(t *testing.T) {
	rec := &recorder{}
	x := New(rec, nil)
	err := x.SetAll(context.Background(), map[string]value.Value{"ok": value.NewScalar(1), "bad": nil})
	if !octerr.Is(err, octerr.KindEncode) {
		t.Fatalf("err = %v, want encode failure", err)
	}
	if rec.calls != 0 {
		t.Fatalf("%d exchanges issued", rec.calls)
	}
	err = x.SetAll(context.Background(), map[string]value.Value{"1x": value.NewScalar(1)})
	if !octerr.Is(err, octerr.KindUsage) || rec.calls != 0 {
		t.Fatalf("err = %v, calls = %d", err, rec.calls)
	}
}

func TestSetAllRejectsOutput(t *testing.T) {
	x := New(&recorder{response: "error: load: failed"}, nil)
	err := x.SetAll(context.Background(), map[string]value.Value{"a": value.NewScalar(1)})
	if !octerr.Is(err, octerr.KindIO) {
		t.Fatalf("err = %v, want io failure", err)
	}
}

func TestExistsParsesStrictly(t *testing.T) {
	rec := &recorder{response: "1\n"}
	_, err := New(rec, nil).Exists(context.Background(), "a")
	if !octerr.Is(err, octerr.KindParse) {
		t.Fatalf("err = %v, want parse failure", err)
	}
	if got := rec.requests[0]; got != "printf(\"%d\", exist(\"a\", \"var\"));\n" {
		t.Fatalf("probe = %q", got)
	}
}

func TestGetAbsentSkipsSave(t *testing.T) {
	rec := &recorder{response: "0"}
	v, ok, err := New(rec, nil).Get(context.Background(), "nothing")
	if err != nil || ok || v != nil {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
	if rec.calls != 1 {
		t.Fatalf("%d exchanges, want only the probe", rec.calls)
	}
}

func TestPutGetFake(t *testing.T) {
	_, x := startFake(t)
	ctx := context.Background()
	cell, err := value.NewCellOf([]value.Value{value.NewScalar(1), value.Text("two")}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	vars := map[string]value.Value{
		"tre":  value.NewScalar(43),
		"c":    cell,
		"flag": value.NewBool(true),
	}
	if err := x.SetAll(ctx, vars); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	for name, want := range vars {
		got, ok, err := x.Get(ctx, name)
		if err != nil || !ok {
			t.Fatalf("Get(%s) = %v, %v", name, ok, err)
		}
		if !got.Equal(want) {
			t.Errorf("Get(%s) returned a different value", name)
		}
	}
	if err := x.Clear(ctx, "tre", "c"); err != nil {
		t.Fatal(err)
	}
	if ok, err := x.Exists(ctx, "tre"); err != nil || ok {
		t.Fatalf("after clear: exists = %v, %v", ok, err)
	}
	if ok, err := x.Exists(ctx, "flag"); err != nil || !ok {
		t.Fatalf("flag: exists = %v, %v", ok, err)
	}
}

func TestGetDecodeFailureKeepsChannel(t *testing.T) {
	ch, x := startFake(t)
	ctx := context.Background()
	if err := ch.Exchange(ctx, func(w io.Writer) error {
		_, err := io.WriteString(w, "s = 'abc'\n")
		return err
	}, nil); err != nil {
		t.Fatal(err)
	}
	// A registry without a text decoder fails on the record, not the stream.
	narrow := &Exchange{ch: ch, reg: codec.Default().Without("string")}
	if _, _, err := narrow.Get(ctx, "s"); !octerr.Is(err, octerr.KindParse) {
		t.Fatalf("err = %v, want parse failure", err)
	}
	v, ok, err := x.Get(ctx, "s")
	if err != nil || !ok || !v.Equal(value.Text("abc")) {
		t.Fatalf("Get after parse failure = %v, %v, %v", v, ok, err)
	}
}

func TestValidName(t *testing.T) {
	for name, want := range map[string]bool{
		"x": true, "abc_1": true, "A9": true,
		"": false, "_x": false, "1x": false, "a-b": false, "a b": false, "x;clear": false,
	} {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v", name, got)
		}
	}
}
