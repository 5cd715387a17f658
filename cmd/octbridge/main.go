package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"octbridge/internal/config"
	"octbridge/internal/octerr"
	"octbridge/internal/version"
)

// newRootCmd assembles the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "octbridge",
		Short:         "Drive GNU Octave from the command line",
		Long:          `octbridge runs GNU Octave as a subprocess and moves typed values in and out of it`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newEvalCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newWorkspaceCmd())
	root.AddCommand(newVersionCmd())

	pf := root.PersistentFlags()
	pf.String("config", "", "path to "+config.FileName+" (default: search upwards from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "show timing information")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "heartbeat interval for pending exchanges (0 disables)")
	pf.String("cpu-profile", "", "write a CPU profile of octbridge to this file")
	pf.String("mem-profile", "", "write a heap profile of octbridge to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		reportError(root.ErrOrStderr(), err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when the interpreter died or could not be driven, 1 for
// every other failure.
func exitCode(err error) int {
	switch octerr.KindOf(err) {
	case octerr.KindIO, octerr.KindState:
		return 2
	default:
		return 1
	}
}

func reportError(w io.Writer, err error) {
	prefix := color.New(color.FgRed, color.Bold)
	prefix.Fprint(w, "error: ")
	fmt.Fprintln(w, err)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
