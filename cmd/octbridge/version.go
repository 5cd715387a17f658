package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"octbridge/internal/version"
)

type versionOptions struct {
	format      string
	showHash    bool
	showDate    bool
	interpreter bool
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show octbridge build information",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().Bool("hash", false, "include git commit hash")
	cmd.Flags().Bool("date", false, "include build timestamp")
	cmd.Flags().Bool("full", false, "show every recorded bit of build metadata")
	cmd.Flags().Bool("interpreter", false, "start the interpreter and report its version too")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) (err error) {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	opts := versionOptions{format: strings.ToLower(format)}
	full, _ := cmd.Flags().GetBool("full")
	opts.showHash, _ = cmd.Flags().GetBool("hash")
	opts.showDate, _ = cmd.Flags().GetBool("date")
	opts.interpreter, _ = cmd.Flags().GetBool("interpreter")
	opts.showHash = opts.showHash || full
	opts.showDate = opts.showDate || full

	switch opts.format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	info := version.Current()
	if opts.interpreter {
		env, err := prepare(cmd)
		if err != nil {
			return err
		}
		defer func() { env.cleanup(err) }()
		s, err := env.openSession(cmd, io.Discard)
		if err != nil {
			return err
		}
		info.Octave, err = s.Version(cmd.Context())
		if err = finish(s, err); err != nil {
			return err
		}
	}

	if opts.format == "json" {
		return renderVersionJSON(cmd.OutOrStdout(), info, opts)
	}
	renderVersionPretty(cmd.OutOrStdout(), info, opts)
	return nil
}

func renderVersionPretty(out io.Writer, info version.Info, opts versionOptions) {
	fmt.Fprintf(out, "octbridge %s\n", version.Pretty())
	if opts.showHash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(info.BuildDate))
	}
	if opts.interpreter {
		fmt.Fprintf(out, "octave: %s\n", valueOrUnknown(info.Octave))
	}
}

func renderVersionJSON(out io.Writer, info version.Info, opts versionOptions) error {
	payload := version.Info{Version: info.Version, Octave: info.Octave}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
