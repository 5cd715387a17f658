package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"octbridge/internal/config"
	"octbridge/internal/octerr"
	"octbridge/internal/session"
	"octbridge/internal/snapshot"
	"octbridge/internal/ui"
)

// cliEnv is what every command needs once the global flags are resolved.
type cliEnv struct {
	cfg     config.Config
	printer ui.Printer
	timings bool
	cleanup func(error)
}

func prepare(cmd *cobra.Command) (*cliEnv, error) {
	flags := cmd.Root().PersistentFlags()
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	colorValue, err := flags.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	colorMode, err := readUIMode("color", colorValue)
	if err != nil {
		return nil, err
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}

	stopProfiles, err := setupProfiling(cmd)
	if err != nil {
		return nil, err
	}
	stopTracing, err := setupTracing(cmd, &cfg)
	if err != nil {
		_ = stopProfiles()
		return nil, err
	}
	errOut := cmd.ErrOrStderr()
	return &cliEnv{
		cfg:     cfg,
		printer: ui.Printer{Color: applyColor(colorMode)},
		timings: timings,
		cleanup: func(err error) {
			stopTracing(err)
			if perr := stopProfiles(); perr != nil {
				fmt.Fprintf(errOut, "warning: %v\n", perr)
			}
		},
	}, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		return config.Discover(wd)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	config.ApplyEnv(&cfg)
	return cfg, nil
}

// openSession starts the interpreter with its output going to out.
func (e *cliEnv) openSession(cmd *cobra.Command, out io.Writer) (*session.Session, error) {
	return session.Open(cmd.Context(), e.cfg,
		session.WithOutput(out),
		session.WithErrorOutput(cmd.ErrOrStderr()))
}

func (e *cliEnv) openStore() (*snapshot.Store, error) {
	dir, err := e.cfg.WorkspaceDir()
	if err != nil {
		return nil, err
	}
	return snapshot.Open(dir, nil)
}

// finish shuts the session down: an orderly close while the interpreter is
// healthy, a kill otherwise. The first error wins.
func finish(s *session.Session, err error) error {
	if k := octerr.KindOf(err); k == octerr.KindIO || k == octerr.KindState {
		s.Destroy()
		return err
	}
	if cerr := s.Close(); cerr != nil {
		s.Destroy()
		if err == nil {
			err = cerr
		}
	}
	return err
}
