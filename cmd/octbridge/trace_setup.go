package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"octbridge/internal/config"
	"octbridge/internal/trace"
)

// setupTracing merges the trace flags over the [trace] section of cfg and
// attaches the resulting tracer to the command's context. The returned
// cleanup dumps the ring buffer when the command failed, then flushes and
// closes the tracer.
func setupTracing(cmd *cobra.Command, cfg *config.Config) (func(error), error) {
	flags := cmd.Root().PersistentFlags()

	override := func(name string, dst *string) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
		return nil
	}
	if err := override("trace", &cfg.Trace.Output); err != nil {
		return nil, err
	}
	if err := override("trace-level", &cfg.Trace.Level); err != nil {
		return nil, err
	}
	if err := override("trace-mode", &cfg.Trace.Mode); err != nil {
		return nil, err
	}
	if err := override("trace-format", &cfg.Trace.Format); err != nil {
		return nil, err
	}
	if flags.Changed("trace-ring-size") {
		n, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		cfg.Trace.RingSize = n
	}
	if flags.Changed("trace-heartbeat") {
		d, err := flags.GetDuration("trace-heartbeat")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
		cfg.Trace.Heartbeat = d.String()
	}
	// --trace alone turns tracing on at phase level.
	if flags.Changed("trace") && !flags.Changed("trace-level") && cfg.Trace.Level == "off" {
		cfg.Trace.Level = "phase"
	}

	tc, err := cfg.Trace.Tracer()
	if err != nil {
		return nil, fmt.Errorf("invalid trace configuration: %w", err)
	}
	if tc.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func(error) {}, nil
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	cleanup := func(runErr error) {
		if ring := trace.RingOf(tracer); ring != nil && runErr != nil {
			fmt.Fprintln(os.Stderr, "trace: last events before the failure:")
			if err := ring.Dump(os.Stderr, tc.Format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
