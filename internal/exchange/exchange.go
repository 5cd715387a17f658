// Package exchange moves named variables between the host and the
// interpreter's workspace: batch assignment through load, existence probes
// and reads through save.
package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"

	"octbridge/internal/codec"
	"octbridge/internal/octerr"
	"octbridge/internal/process"
	"octbridge/internal/value"
)

// Channel is the part of *process.Channel the exchanges need.
type Channel interface {
	Exchange(ctx context.Context, write process.WriteFunc, read process.ReadFunc) error
}

// Exchange runs variable transfers over a channel.
type Exchange struct {
	ch  Channel
	reg *codec.Registry
}

// New returns an Exchange. A nil registry selects codec.Default().
func New(ch Channel, reg *codec.Registry) *Exchange {
	if reg == nil {
		reg = codec.Default()
	}
	return &Exchange{ch: ch, reg: reg}
}

var validName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidName reports whether name is a legal interpreter variable name.
func ValidName(name string) bool { return validName.MatchString(name) }

func checkName(name string) error {
	if !ValidName(name) {
		return octerr.Usage(nil, "invalid variable name %q", name)
	}
	return nil
}

// SetAll assigns every entry of vars in one round trip. All values are
// encoded before anything is sent, so an encoding failure leaves the
// workspace untouched. The interpreter must stay silent while loading.
func (x *Exchange) SetAll(ctx context.Context, vars map[string]value.Value) error {
	var payload bytes.Buffer
	w := codec.NewWriter(&payload)
	w.WriteString("load(\"-text\", \"-\");\n")
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		if err := checkName(name); err != nil {
			return err
		}
		if err := x.reg.WriteNamed(w, name, vars[name]); err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
	}
	codec.EndOfBatch(w)
	if err := w.Err(); err != nil {
		return err
	}

	var unexpected []byte
	err := x.ch.Exchange(ctx,
		func(w io.Writer) error {
			_, err := w.Write(payload.Bytes())
			return err
		},
		func(r io.Reader) error {
			b, err := io.ReadAll(r)
			unexpected = b
			return err
		})
	if err != nil {
		return err
	}
	if len(unexpected) > 0 {
		return octerr.IO("set", nil, "interpreter wrote %q while loading variables", unexpected)
	}
	return nil
}

// Exists reports whether name is defined as a variable.
func (x *Exchange) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	var out []byte
	err := x.ch.Exchange(ctx,
		func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "printf(\"%%d\", exist(\"%s\", \"var\"));\n", name)
			return err
		},
		func(r io.Reader) error {
			b, err := io.ReadAll(r)
			out = b
			return err
		})
	if err != nil {
		return false, err
	}
	switch string(out) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, octerr.Parse("existence probe for %q returned %q", name, out)
}

// Get reads name. An undefined variable yields (nil, false, nil) after the
// probe alone.
func (x *Exchange) Get(ctx context.Context, name string) (value.Value, bool, error) {
	ok, err := x.Exists(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	var v value.Value
	err = x.ch.Exchange(ctx,
		func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "save -text - %s\n", name)
			return err
		},
		func(r io.Reader) error {
			got, val, err := x.reg.ReadSaved(codec.NewReader(r))
			if err != nil {
				return err
			}
			if got != name {
				return octerr.Parse("asked for %q, interpreter saved %q", name, got)
			}
			v = val
			return nil
		})
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Clear removes the named variables from the workspace.
func (x *Exchange) Clear(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	for _, n := range names {
		if err := checkName(n); err != nil {
			return err
		}
	}
	return x.ch.Exchange(ctx,
		func(w io.Writer) error {
			_, err := io.WriteString(w, "clear")
			for _, n := range names {
				if err == nil {
					_, err = io.WriteString(w, " "+n)
				}
			}
			if err == nil {
				_, err = io.WriteString(w, ";\n")
			}
			return err
		},
		func(r io.Reader) error {
			_, err := io.Copy(io.Discard, r)
			return err
		})
}
