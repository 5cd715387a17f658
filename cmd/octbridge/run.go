package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"octbridge/internal/octerr"
	"octbridge/internal/session"
	"octbridge/internal/ui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] <file.m>...",
		Short: "Evaluate script files one after another in a single interpreter",
		Long: `Evaluate script files in order in one interpreter, so later scripts see the
variables of earlier ones. A script error is reported and the run continues;
a dead interpreter stops it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScripts,
	}
	cmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	cmd.Flags().StringP("workspace", "w", "", "workspace to load before the first script")
	cmd.Flags().Bool("fail-fast", false, "stop at the first failing script")
	return cmd
}

type runOptions struct {
	workspace string
	failFast  bool
}

func runScripts(cmd *cobra.Command, files []string) (err error) {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode("ui", uiValue)
	if err != nil {
		return err
	}
	workspace, err := cmd.Flags().GetString("workspace")
	if err != nil {
		return fmt.Errorf("failed to get workspace flag: %w", err)
	}
	failFast, err := cmd.Flags().GetBool("fail-fast")
	if err != nil {
		return fmt.Errorf("failed to get fail-fast flag: %w", err)
	}
	opts := runOptions{workspace: workspace, failFast: failFast}

	env, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer func() { env.cleanup(err) }()

	useTUI := shouldUseTUI(mode)
	// The progress view owns the terminal; script output waits until it ends.
	var held bytes.Buffer
	out := cmd.OutOrStdout()
	if useTUI {
		out = &held
	}
	s, err := env.openSession(cmd, out)
	if err != nil {
		return err
	}

	var results []scriptResult
	work := func(sink ui.ProgressSink) error {
		var werr error
		results, werr = evalFiles(cmd, env, s, files, opts, sink)
		return werr
	}
	if useTUI {
		err = runWithUI("octbridge run", files, work)
		_, _ = io.Copy(cmd.OutOrStdout(), &held)
	} else {
		err = work(ui.NopSink{})
	}
	err = finish(s, err)

	failed := reportResults(cmd.ErrOrStderr(), results)
	if env.timings {
		printTimings(cmd.ErrOrStderr(), s.Timer())
	}
	if err == nil && failed > 0 {
		err = fmt.Errorf("%d of %d scripts failed", failed, len(files))
	}
	return err
}

type scriptResult struct {
	file    string
	err     error
	elapsed time.Duration
}

// evalFiles evaluates each file in turn. Script errors are collected; the
// returned error is reserved for failures that end the run.
func evalFiles(cmd *cobra.Command, env *cliEnv, s *session.Session, files []string, opts runOptions, sink ui.ProgressSink) ([]scriptResult, error) {
	ctx := cmd.Context()
	for _, f := range files {
		sink.OnEvent(ui.Event{File: f, Status: ui.StatusQueued})
	}
	if opts.workspace != "" {
		sink.OnEvent(ui.Event{Stage: ui.StageLoad, Status: ui.StatusWorking})
		if err := loadWorkspace(cmd, env, s, opts.workspace); err != nil {
			return nil, err
		}
	}

	results := make([]scriptResult, 0, len(files))
	for _, f := range files {
		start := time.Now()
		sink.OnEvent(ui.Event{File: f, Stage: ui.StageRead, Status: ui.StatusWorking})
		data, err := os.ReadFile(f)
		if err == nil {
			sink.OnEvent(ui.Event{File: f, Stage: ui.StageEval, Status: ui.StatusWorking})
			err = s.Eval(ctx, string(data))
		}
		res := scriptResult{file: f, err: err, elapsed: time.Since(start)}
		results = append(results, res)

		status := ui.StatusDone
		if err != nil {
			status = ui.StatusError
		}
		sink.OnEvent(ui.Event{File: f, Stage: ui.StageEval, Status: status, Err: err, Elapsed: res.elapsed})

		if err == nil {
			continue
		}
		if k := octerr.KindOf(err); k == octerr.KindIO || k == octerr.KindState {
			return results, err
		}
		if opts.failFast {
			return results, nil
		}
	}
	return results, nil
}

func reportResults(out io.Writer, results []scriptResult) int {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	failed := 0
	for _, r := range results {
		ms := float64(r.elapsed) / float64(time.Millisecond)
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "%s %s (%.1f ms): %v\n", bad("FAIL"), r.file, ms, r.err)
			continue
		}
		fmt.Fprintf(out, "%s   %s (%.1f ms)\n", ok("ok"), r.file, ms)
	}
	return failed
}
