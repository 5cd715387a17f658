package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"octbridge/internal/octerr"
	"octbridge/internal/session"
	"octbridge/internal/value"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [flags] [file.m]",
		Short: "Evaluate a script in a fresh interpreter",
		Long: `Evaluate a script given with -e or read from a file. Script errors are
caught inside the interpreter unless --unsafe is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEval,
	}
	cmd.Flags().StringP("expr", "e", "", "script text to evaluate")
	cmd.Flags().Bool("unsafe", false, "send the script verbatim; a script error kills the interpreter")
	cmd.Flags().StringSlice("print", nil, "variables to print after evaluation")
	cmd.Flags().StringP("workspace", "w", "", "workspace to load before evaluation")
	cmd.Flags().StringSlice("keep", nil, "variables to store back into the workspace")
	return cmd
}

func runEval(cmd *cobra.Command, args []string) (err error) {
	expr, err := cmd.Flags().GetString("expr")
	if err != nil {
		return fmt.Errorf("failed to get expr flag: %w", err)
	}
	unsafe, err := cmd.Flags().GetBool("unsafe")
	if err != nil {
		return fmt.Errorf("failed to get unsafe flag: %w", err)
	}
	printNames, err := cmd.Flags().GetStringSlice("print")
	if err != nil {
		return fmt.Errorf("failed to get print flag: %w", err)
	}
	workspace, err := cmd.Flags().GetString("workspace")
	if err != nil {
		return fmt.Errorf("failed to get workspace flag: %w", err)
	}
	keep, err := cmd.Flags().GetStringSlice("keep")
	if err != nil {
		return fmt.Errorf("failed to get keep flag: %w", err)
	}
	if len(keep) > 0 && workspace == "" {
		return errors.New("--keep needs --workspace")
	}

	script, err := readScript(cmd.InOrStdin(), expr, args)
	if err != nil {
		return err
	}

	env, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer func() { env.cleanup(err) }()

	s, err := env.openSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	err = evalScript(cmd, env, s, script, evalOptions{
		unsafe:    unsafe,
		print:     printNames,
		workspace: workspace,
		keep:      keep,
	})
	err = finish(s, err)
	if env.timings {
		printTimings(cmd.ErrOrStderr(), s.Timer())
	}
	return err
}

type evalOptions struct {
	unsafe    bool
	print     []string
	workspace string
	keep      []string
}

func readScript(stdin io.Reader, expr string, args []string) (string, error) {
	switch {
	case expr != "" && len(args) > 0:
		return "", errors.New("give either -e or a file, not both")
	case expr != "":
		return expr, nil
	case len(args) == 1 && args[0] != "-":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read script: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read script from stdin: %w", err)
		}
		return string(data), nil
	}
}

func evalScript(cmd *cobra.Command, env *cliEnv, s *session.Session, script string, opts evalOptions) error {
	ctx := cmd.Context()
	if opts.workspace != "" {
		if err := loadWorkspace(cmd, env, s, opts.workspace); err != nil {
			return err
		}
	}

	if opts.unsafe {
		if err := s.EvalUnsafe(ctx, script); err != nil {
			return err
		}
	} else if err := s.Eval(ctx, script); err != nil {
		return err
	}

	for _, name := range opts.print {
		v, ok, err := s.Get(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return octerr.Usage(nil, "%s is undefined", name)
		}
		fmt.Fprint(cmd.OutOrStdout(), env.printer.Render(name, v))
	}

	if len(opts.keep) > 0 {
		return keepVariables(cmd, env, s, opts.workspace, opts.keep)
	}
	return nil
}

func loadWorkspace(cmd *cobra.Command, env *cliEnv, s *session.Session, name string) error {
	store, err := env.openStore()
	if err != nil {
		return err
	}
	vars, ok, err := store.Load(name)
	if err != nil {
		return err
	}
	if !ok || len(vars) == 0 {
		return nil
	}
	return s.PutAll(cmd.Context(), vars)
}

func keepVariables(cmd *cobra.Command, env *cliEnv, s *session.Session, workspace string, names []string) error {
	vars := make(map[string]value.Value, len(names))
	for _, name := range names {
		v, ok, err := s.Get(cmd.Context(), name)
		if err != nil {
			return err
		}
		if !ok {
			return octerr.Usage(nil, "cannot keep %s: undefined", name)
		}
		vars[name] = v
	}
	store, err := env.openStore()
	if err != nil {
		return err
	}
	return store.Merge(workspace, vars)
}
