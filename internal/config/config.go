// Package config loads octbridge.toml: how to launch the interpreter, how to
// trace, and where workspaces live.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"octbridge/internal/trace"
)

// FileName is the configuration file searched for.
const FileName = "octbridge.toml"

// EnvExecutable overrides [octave].executable.
const EnvExecutable = "OCTBRIDGE_OCTAVE"

// DefaultArgs run the interpreter silently and without per-user state, so
// its output is only what the bridge asks for.
var DefaultArgs = []string{
	"--no-history",
	"--no-init-file",
	"--no-line-editing",
	"--no-site-file",
	"--silent",
}

// Config is the decoded configuration with defaults applied.
type Config struct {
	Path string `toml:"-"` // file the configuration came from; empty for defaults

	Octave    OctaveConfig    `toml:"octave"`
	Trace     TraceConfig     `toml:"trace"`
	Workspace WorkspaceConfig `toml:"workspace"`
}

// OctaveConfig describes the interpreter process.
type OctaveConfig struct {
	Executable string   `toml:"executable"`
	Args       []string `toml:"args"`
	Dir        string   `toml:"dir"`
	Env        []string `toml:"env"`
	InheritEnv bool     `toml:"inherit_env"`
	Encoding   string   `toml:"encoding"`
}

// TraceConfig mirrors the --trace* flags.
type TraceConfig struct {
	Level     string `toml:"level"`
	Output    string `toml:"output"`
	Mode      string `toml:"mode"`
	Format    string `toml:"format"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

// WorkspaceConfig locates persisted workspaces.
type WorkspaceConfig struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Octave: OctaveConfig{
			Executable: "octave",
			Args:       append([]string(nil), DefaultArgs...),
			InheritEnv: true,
		},
		Trace: TraceConfig{
			Level:    "off",
			Output:   "-",
			Mode:     "stream",
			Format:   "auto",
			RingSize: 4096,
		},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Discover loads the nearest FileName above startDir, or the defaults when
// there is none. The executable override from the environment applies
// either way.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if ok {
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// Load reads one file. Keys the file leaves out keep their defaults.
func Load(path string) (Config, error) {
	var file Config
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	cfg := Default()
	cfg.Path = path
	if meta.IsDefined("octave", "executable") {
		if strings.TrimSpace(file.Octave.Executable) == "" {
			return Config{}, fmt.Errorf("%s: [octave].executable is empty", path)
		}
		cfg.Octave.Executable = file.Octave.Executable
	}
	if meta.IsDefined("octave", "args") {
		cfg.Octave.Args = file.Octave.Args
	}
	if meta.IsDefined("octave", "dir") {
		cfg.Octave.Dir = resolve(path, file.Octave.Dir)
	}
	if meta.IsDefined("octave", "env") {
		for _, kv := range file.Octave.Env {
			if !strings.Contains(kv, "=") {
				return Config{}, fmt.Errorf("%s: [octave].env entry %q is not KEY=VALUE", path, kv)
			}
		}
		cfg.Octave.Env = file.Octave.Env
	}
	if meta.IsDefined("octave", "inherit_env") {
		cfg.Octave.InheritEnv = file.Octave.InheritEnv
	}
	if meta.IsDefined("octave", "encoding") {
		cfg.Octave.Encoding = file.Octave.Encoding
	}

	if meta.IsDefined("trace", "level") {
		cfg.Trace.Level = file.Trace.Level
	}
	if meta.IsDefined("trace", "output") {
		cfg.Trace.Output = file.Trace.Output
	}
	if meta.IsDefined("trace", "mode") {
		cfg.Trace.Mode = file.Trace.Mode
	}
	if meta.IsDefined("trace", "format") {
		cfg.Trace.Format = file.Trace.Format
	}
	if meta.IsDefined("trace", "ring_size") {
		cfg.Trace.RingSize = file.Trace.RingSize
	}
	if meta.IsDefined("trace", "heartbeat") {
		cfg.Trace.Heartbeat = file.Trace.Heartbeat
	}
	if _, err := cfg.Trace.Tracer(); err != nil {
		return Config{}, fmt.Errorf("%s: [trace]: %w", path, err)
	}

	if meta.IsDefined("workspace", "dir") {
		cfg.Workspace.Dir = resolve(path, file.Workspace.Dir)
	}
	return cfg, nil
}

// resolve makes p relative to the directory of the config file.
func resolve(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// ApplyEnv applies environment overrides to cfg.
func ApplyEnv(cfg *Config) {
	if exe := strings.TrimSpace(os.Getenv(EnvExecutable)); exe != "" {
		cfg.Octave.Executable = exe
	}
}

// Command returns the executable, its arguments and the environment to
// launch it with. A nil environment means inherit.
func (o OctaveConfig) Command() (string, []string, []string) {
	args := append([]string(nil), o.Args...)
	var env []string
	switch {
	case o.InheritEnv && len(o.Env) > 0:
		env = append(os.Environ(), o.Env...)
	case !o.InheritEnv:
		env = append([]string{}, o.Env...)
	}
	return o.Executable, args, env
}

// Tracer converts the section into a trace.Config.
func (t TraceConfig) Tracer() (trace.Config, error) {
	level, err := trace.ParseLevel(t.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(t.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(t.Format)
	if err != nil {
		return trace.Config{}, err
	}
	var hb time.Duration
	if t.Heartbeat != "" {
		if hb, err = time.ParseDuration(t.Heartbeat); err != nil {
			return trace.Config{}, fmt.Errorf("heartbeat: %w", err)
		}
	}
	if t.RingSize < 0 {
		return trace.Config{}, fmt.Errorf("ring_size %d is negative", t.RingSize)
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: t.Output,
		RingSize:   t.RingSize,
		Heartbeat:  hb,
	}, nil
}

// WorkspaceDir returns the configured workspace directory, falling back to
// $XDG_CACHE_HOME/octbridge/workspaces.
func (c Config) WorkspaceDir() (string, error) {
	if c.Workspace.Dir != "" {
		return c.Workspace.Dir, nil
	}
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		var err error
		if base, err = os.UserCacheDir(); err != nil {
			return "", fmt.Errorf("no workspace directory: %w", err)
		}
	}
	return filepath.Join(base, "octbridge", "workspaces"), nil
}
