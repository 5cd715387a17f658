package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"octbridge/internal/prof"
)

// setupProfiling starts the profiles named by the persistent flags. The
// returned stop is nil-safe and idempotent.
func setupProfiling(cmd *cobra.Command) (func() error, error) {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return func() error { return nil }, nil
	}
	p, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return p.Stop, nil
}
