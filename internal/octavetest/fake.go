// Package octavetest provides a scripted stand-in for the interpreter so the
// process, exchange and session layers can be tested without Octave.
//
// The fake runs inside the test binary itself: a package's TestMain calls
// Main, which takes over the process when the binary was re-executed by
// Command.
//
//	func TestMain(m *testing.M) {
//		octavetest.Main()
//		os.Exit(m.Run())
//	}
//
// The fake understands the command shapes the bridge emits (sentinel
// prints, exist probes, save/load/eval/clear) plus a small statement
// language for scripts:
//
//	name = 12.5          assign a scalar (NaN, Inf and -Inf included)
//	name = other + 10    arithmetic on a scalar variable (+ - * /)
//	name = 'text'        assign a string
//	disp(name)           print a variable
//	clear                remove every variable
//	who                  print the variable names, sorted, one per line
//	error('message')     fail
//	exit(N)              exit with status N
//	__stderr__ text      write text to stderr
//	__hang__             block forever
//	__exit_status__ N    status used by a later plain "exit"
//	__trailer__ text     text printed after a plain "exit"
package octavetest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"octbridge/internal/codec"
	"octbridge/internal/value"
)

const envKey = "OCTBRIDGE_FAKE_INTERPRETER"

// Version is what the fake reports as OCTAVE_VERSION.
const Version = "9.2.0-fake"

// Main runs the fake interpreter and exits when the binary was started by
// Command. Otherwise it returns immediately.
func Main() {
	if os.Getenv(envKey) != "1" {
		return
	}
	f := &fake{
		in:   codec.NewReader(bufio.NewReader(os.Stdin)),
		out:  bufio.NewWriter(os.Stdout),
		vars: map[string]value.Value{},
		reg:  codec.Default(),
	}
	os.Exit(f.run())
}

// Command returns the executable, arguments and environment that start the
// fake interpreter.
func Command() (path string, args []string, env []string) {
	return os.Args[0], []string{"-test.run=^$"}, append(os.Environ(), envKey+"=1")
}

// HaveOctave reports whether a real interpreter is on PATH.
func HaveOctave() (string, bool) {
	p, err := exec.LookPath("octave")
	return p, err == nil
}

var (
	rePrintfSentinel = regexp.MustCompile(`^printf\("\\n%s\\n", "([^"]*)"\);$`)
	reExist          = regexp.MustCompile(`^printf\("%d", exist\("([^"]+)", "var"\)\);$`)
	reSave           = regexp.MustCompile(`^save -text - (\S+)$`)
	reEval           = regexp.MustCompile(`^eval\((\w+), "(\w+) = lasterr\(\);"\);$`)
	reClear          = regexp.MustCompile(`^clear ([\w ]+);?$`)
	reAssignNum      = regexp.MustCompile(`^(\w+)\s*=\s*(-?(?:[0-9.eE+-]+|NaN|Inf))$`)
	reArith          = regexp.MustCompile(`^(\w+)\s*=\s*([A-Za-z]\w*)\s*([-+*/])\s*(-?[0-9.eE+-]+)$`)
	reAssignStr      = regexp.MustCompile(`^(\w+)\s*=\s*'([^']*)'$`)
	reDisp           = regexp.MustCompile(`^disp\((\w+)\)$`)
	reError          = regexp.MustCompile(`^error\('([^']*)'\)$`)
	reExit           = regexp.MustCompile(`^exit\((\d+)\)$`)
)

type fake struct {
	in         *codec.Reader
	out        *bufio.Writer
	vars       map[string]value.Value
	reg        *codec.Registry
	exitStatus int
	trailer    string
}

// errExit stops the command loop with a status.
type errExit struct{ status int }

func (e errExit) Error() string { return fmt.Sprintf("exit %d", e.status) }

func (f *fake) run() int {
	defer f.out.Flush()
	for {
		line, err := f.in.PeekLine()
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			return 2
		}
		_, _ = f.in.ReadLine()
		if err := f.command(strings.TrimSpace(line)); err != nil {
			var ex errExit
			if errors.As(err, &ex) {
				return ex.status
			}
			f.out.Flush()
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		f.out.Flush()
	}
}

func (f *fake) command(line string) error {
	if m := rePrintfSentinel.FindStringSubmatch(line); m != nil {
		fmt.Fprintf(f.out, "\n%s\n", m[1])
		return nil
	}
	if m := reExist.FindStringSubmatch(line); m != nil {
		if _, ok := f.vars[m[1]]; ok {
			f.out.WriteString("1")
		} else {
			f.out.WriteString("0")
		}
		return nil
	}
	if line == `printf("%s", OCTAVE_VERSION);` {
		f.out.WriteString(Version)
		return nil
	}
	if m := reSave.FindStringSubmatch(line); m != nil {
		v, ok := f.vars[m[1]]
		if !ok {
			return fmt.Errorf("save: no such variable '%s'", m[1])
		}
		f.out.WriteString("# Created by Octave " + Version + "\n")
		w := codec.NewWriter(f.out)
		if err := f.reg.WriteNamed(w, m[1], v); err != nil {
			return err
		}
		f.out.WriteString("\n\n")
		return nil
	}
	if line == `load("-text", "-");` {
		return f.load()
	}
	if m := reEval.FindStringSubmatch(line); m != nil {
		src, ok := f.vars[m[1]].(value.Text)
		if !ok {
			f.vars[m[2]] = value.Text(fmt.Sprintf("'%s' undefined", m[1]))
			return nil
		}
		if err := f.script(string(src)); err != nil {
			var ex errExit
			if errors.As(err, &ex) {
				return err
			}
			f.vars[m[2]] = value.Text(err.Error())
		}
		return nil
	}
	return f.script(line)
}

// load reads named records until the empty name that ends the batch.
func (f *fake) load() error {
	for {
		if err := f.in.SkipBlank(); err != nil {
			return err
		}
		line, err := f.in.PeekLine()
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		if line == "# name: " || line == "# name:" {
			_, _ = f.in.ReadLine()
			return nil
		}
		name, v, err := f.reg.ReadNamed(f.in)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		f.vars[name] = v
	}
}

// script runs the statement language, one statement per line or semicolon.
func (f *fake) script(src string) error {
	for _, raw := range strings.FieldsFunc(src, func(r rune) bool { return r == '\n' || r == ';' }) {
		if err := f.statement(strings.TrimSpace(raw)); err != nil {
			return err
		}
	}
	return nil
}

func (f *fake) statement(st string) error {
	switch {
	case st == "":
		return nil
	case st == "exit":
		f.out.Flush()
		if f.trailer != "" {
			f.out.WriteString(f.trailer + "\n")
		}
		return errExit{f.exitStatus}
	case st == "__hang__":
		f.out.Flush()
		for {
			time.Sleep(time.Hour)
		}
	case strings.HasPrefix(st, "__stderr__ "):
		fmt.Fprintln(os.Stderr, strings.TrimPrefix(st, "__stderr__ "))
		return nil
	case strings.HasPrefix(st, "__exit_status__ "):
		n, err := strconv.Atoi(strings.TrimPrefix(st, "__exit_status__ "))
		f.exitStatus = n
		return err
	case strings.HasPrefix(st, "__trailer__ "):
		f.trailer = strings.TrimPrefix(st, "__trailer__ ")
		return nil
	}
	if st == "clear" || st == "clear all" {
		clear(f.vars)
		return nil
	}
	if st == "who" {
		for _, name := range slices.Sorted(maps.Keys(f.vars)) {
			f.out.WriteString(name + "\n")
		}
		return nil
	}
	if m := reExit.FindStringSubmatch(st); m != nil {
		n, _ := strconv.Atoi(m[1])
		return errExit{n}
	}
	if m := reClear.FindStringSubmatch(st); m != nil {
		for _, name := range strings.Fields(m[1]) {
			delete(f.vars, name)
		}
		return nil
	}
	if m := reError.FindStringSubmatch(st); m != nil {
		return errors.New(m[1])
	}
	if m := reAssignStr.FindStringSubmatch(st); m != nil {
		f.vars[m[1]] = value.Text(m[2])
		return nil
	}
	if m := reAssignNum.FindStringSubmatch(st); m != nil {
		d, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return fmt.Errorf("parse error near '%s'", m[2])
		}
		f.vars[m[1]] = value.NewScalar(d)
		return nil
	}
	if m := reArith.FindStringSubmatch(st); m != nil {
		return f.arith(m[1], m[2], m[3], m[4])
	}
	if m := reDisp.FindStringSubmatch(st); m != nil {
		v, ok := f.vars[m[1]]
		if !ok {
			return fmt.Errorf("'%s' undefined", m[1])
		}
		switch x := v.(type) {
		case value.Text:
			f.out.WriteString(string(x) + "\n")
		case *value.Matrix:
			if x.IsScalar() {
				fmt.Fprintf(f.out, "%g\n", x.Raw()[0])
				return nil
			}
			fmt.Fprintf(f.out, "%v\n", x.Raw())
		default:
			fmt.Fprintf(f.out, "<%s>\n", v.Kind())
		}
		return nil
	}
	return fmt.Errorf("parse error: '%s'", st)
}

func (f *fake) arith(dst, src, op, lit string) error {
	m, ok := f.vars[src].(*value.Matrix)
	if !ok || !m.IsScalar() {
		return fmt.Errorf("'%s' undefined", src)
	}
	d, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return fmt.Errorf("parse error near '%s'", lit)
	}
	x := m.Raw()[0]
	switch op {
	case "+":
		x += d
	case "-":
		x -= d
	case "*":
		x *= d
	case "/":
		x /= d
	}
	f.vars[dst] = value.NewScalar(x)
	return nil
}
