// Package snapshot persists named sets of values ("workspaces") on disk so a
// later session can load them back into the interpreter.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"octbridge/internal/codec"
	"octbridge/internal/octerr"
	"octbridge/internal/value"
)

// Current schema version; increment when Payload changes shape.
const schemaVersion uint16 = 1

const fileExt = ".mp"

var validWorkspace = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Payload is the on-disk form of a workspace. Values are kept as their
// interpreter wire records, so anything the codec can read survives a
// round trip unchanged.
type Payload struct {
	Schema  uint16
	Name    string
	SavedAt time.Time
	Entries []Entry
}

// Entry is one variable of a workspace.
type Entry struct {
	Name   string
	Kind   string
	Record string
}

// Info summarises a stored workspace.
type Info struct {
	Name    string
	SavedAt time.Time
	Vars    []string
	Size    int64
}

// Store is a directory of workspace files. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string
	reg *codec.Registry
}

// Open returns a store rooted at dir, creating it if needed. A nil registry
// selects codec.Default().
func Open(dir string, reg *codec.Registry) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace dir: %w", err)
	}
	if reg == nil {
		reg = codec.Default()
	}
	return &Store{dir: dir, reg: reg}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(name string) (string, error) {
	if !validWorkspace.MatchString(name) {
		return "", octerr.Usage(nil, "invalid workspace name %q", name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

// Save replaces workspace name with vars.
func (s *Store) Save(name string, vars map[string]value.Value) error {
	p, err := s.pathFor(name)
	if err != nil {
		return err
	}
	payload := &Payload{Schema: schemaVersion, Name: name, SavedAt: time.Now().UTC()}
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		v := vars[k]
		if v != nil && v.Kind() == value.KindFunctionHandle {
			return octerr.Usage(nil, "%s: function handles cannot be stored", k)
		}
		var buf bytes.Buffer
		if err := s.reg.WriteValue(codec.NewWriter(&buf), v); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		payload.Entries = append(payload.Entries, Entry{Name: k, Kind: v.Kind().String(), Record: buf.String()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding workspace %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *Store) read(p string) (*Payload, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var payload Payload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%s: corrupt workspace: %w", p, err)
	}
	if payload.Schema != schemaVersion {
		return nil, fmt.Errorf("%s: workspace schema %d, want %d", p, payload.Schema, schemaVersion)
	}
	return &payload, nil
}

// Load returns the values of workspace name, or false when it does not exist.
func (s *Store) Load(name string) (map[string]value.Value, bool, error) {
	p, err := s.pathFor(name)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	payload, err := s.read(p)
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vars := make(map[string]value.Value, len(payload.Entries))
	for _, e := range payload.Entries {
		v, err := s.reg.ReadValue(codec.NewReader(strings.NewReader(e.Record)))
		if err != nil {
			return nil, false, fmt.Errorf("workspace %s, variable %s: %w", name, e.Name, err)
		}
		vars[e.Name] = v
	}
	return vars, true, nil
}

// Merge stores vars into workspace name, keeping variables it already holds
// unless vars replaces them.
func (s *Store) Merge(name string, vars map[string]value.Value) error {
	existing, _, err := s.Load(name)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = map[string]value.Value{}
	}
	maps.Copy(existing, vars)
	return s.Save(name, existing)
}

// List describes every stored workspace, sorted by name.
func (s *Store) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	infos := make([]Info, 0, len(matches))
	for _, p := range matches {
		payload, err := s.read(p)
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		info := Info{Name: payload.Name, SavedAt: payload.SavedAt, Size: st.Size()}
		for _, e := range payload.Entries {
			info.Vars = append(info.Vars, e.Name)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Drop deletes workspace name and reports whether it existed.
func (s *Store) Drop(name string) (bool, error) {
	p, err := s.pathFor(name)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
