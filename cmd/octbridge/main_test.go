package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"octbridge/internal/config"
	"octbridge/internal/octavetest"
	"octbridge/internal/octerr"
	"octbridge/internal/version"
)

func TestMain(m *testing.M) {
	octavetest.Main()
	os.Exit(m.Run())
}

// fakeConfig writes a configuration that launches the fake interpreter.
func fakeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvExecutable, "")
	dir := t.TempDir()
	exe, args, _ := octavetest.Command()
	body := fmt.Sprintf(`[octave]
executable = %q
args = [%q]
env = ["OCTBRIDGE_FAKE_INTERPRETER=1"]

[workspace]
dir = %q
`, exe, args[0], filepath.Join(dir, "ws"))
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, cfgPath string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config", cfgPath, "--color", "off"))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestEvalPrint(t *testing.T) {
	cfg := fakeConfig(t)
	out, _, err := execute(t, cfg, "eval", "-e", "x = 40\nx = x + 2", "--print", "x")
	if err != nil {
		t.Fatal(err)
	}
	if out != "x = 42\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestEvalScriptError(t *testing.T) {
	cfg := fakeConfig(t)
	_, _, err := execute(t, cfg, "eval", "-e", "error('boom')")
	if !octerr.Is(err, octerr.KindEval) {
		t.Fatalf("err = %v, want eval failure", err)
	}
	if exitCode(err) != 1 {
		t.Errorf("exit code = %d", exitCode(err))
	}
}

func TestEvalArguments(t *testing.T) {
	cfg := fakeConfig(t)
	if _, _, err := execute(t, cfg, "eval", "-e", "x = 1", "--keep", "x"); err == nil {
		t.Error("--keep without --workspace accepted")
	}
	script := filepath.Join(t.TempDir(), "s.m")
	if err := os.WriteFile(script, []byte("y = 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, cfg, "eval", "-e", "x = 1", script); err == nil {
		t.Error("-e together with a file accepted")
	}
	out, _, err := execute(t, cfg, "eval", script, "--print", "y")
	if err != nil || out != "y = 3\n" {
		t.Fatalf("file eval = %q, %v", out, err)
	}
}

func TestWorkspaceRoundTrip(t *testing.T) {
	cfg := fakeConfig(t)
	if _, _, err := execute(t, cfg, "eval", "-e", "a = 5", "-w", "w1", "--keep", "a"); err != nil {
		t.Fatal(err)
	}
	out, _, err := execute(t, cfg, "eval", "-e", "b = a + 1", "-w", "w1", "--print", "b")
	if err != nil {
		t.Fatal(err)
	}
	if out != "b = 6\n" {
		t.Fatalf("output = %q", out)
	}

	out, _, err = execute(t, cfg, "workspace", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "w1") || !strings.Contains(out, "VARIABLES") {
		t.Fatalf("list = %q", out)
	}
	out, _, err = execute(t, cfg, "workspace", "show", "w1")
	if err != nil || out != "a = 5\n" {
		t.Fatalf("show = %q, %v", out, err)
	}
	if _, _, err := execute(t, cfg, "workspace", "drop", "w1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, cfg, "workspace", "show", "w1"); !octerr.Is(err, octerr.KindUsage) {
		t.Fatalf("show after drop: err = %v", err)
	}
}

func TestRunScripts(t *testing.T) {
	cfg := fakeConfig(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.m")
	bad := filepath.Join(dir, "bad.m")
	after := filepath.Join(dir, "after.m")
	for path, body := range map[string]string{
		good:  "n = 1\ndisp(n)\n",
		bad:   "error('nope')\n",
		after: "n = n + 1\ndisp(n)\n",
	} {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	out, errOut, err := execute(t, cfg, "run", "--ui", "off", good, bad, after)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 scripts failed") {
		t.Fatalf("err = %v", err)
	}
	if out != "1\n2\n" {
		t.Errorf("script output = %q", out)
	}
	if !strings.Contains(errOut, "FAIL "+bad) || !strings.Contains(errOut, "ok   "+after) {
		t.Errorf("report = %q", errOut)
	}

	_, errOut, err = execute(t, cfg, "run", "--ui", "off", "--fail-fast", bad, good)
	if err == nil || strings.Contains(errOut, good) {
		t.Fatalf("fail-fast ran past the failure: %v\n%s", err, errOut)
	}
}

func TestVersionJSON(t *testing.T) {
	cfg := fakeConfig(t)
	out, _, err := execute(t, cfg, "version", "--format", "json", "--interpreter")
	if err != nil {
		t.Fatal(err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("bad json %q: %v", out, err)
	}
	if info.Version != version.Version || info.Octave != octavetest.Version {
		t.Fatalf("info = %+v", info)
	}
	if _, _, err := execute(t, cfg, "version", "--format", "xml"); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestTimingsAndTrace(t *testing.T) {
	cfg := fakeConfig(t)
	traceFile := filepath.Join(t.TempDir(), "trace.ndjson")
	_, errOut, err := execute(t, cfg, "eval", "-e", "x = 1", "--timings", "--trace", traceFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "timings:") || !strings.Contains(errOut, "eval") {
		t.Errorf("timings missing: %q", errOut)
	}
	data, err := os.ReadFile(traceFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"name":"eval"`) {
		t.Errorf("trace lacks the eval span:\n%s", data)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.New("plain"), 1},
		{octerr.Eval("boom"), 1},
		{octerr.Parse("bad"), 1},
		{octerr.IO("exchange", nil, "pipe closed"), 2},
		{octerr.State("get", false, "closed"), 2},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, "on": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode("ui", in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("ui", "sometimes"); err == nil {
		t.Error("bad mode accepted")
	}
}

func TestProfileFlags(t *testing.T) {
	cfg := fakeConfig(t)
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")
	_, _, err := execute(t, cfg, "eval", "-e", "x = 1", "--cpu-profile", cpu, "--mem-profile", mem)
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{cpu, mem} {
		if st, err := os.Stat(path); err != nil || st.Size() == 0 {
			t.Errorf("%s not written: %v", filepath.Base(path), err)
		}
	}
}
