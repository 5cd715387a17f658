package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"octbridge/internal/octerr"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage stored workspaces",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored workspaces",
		Args:  cobra.NoArgs,
		RunE:  runWorkspaceList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print the variables of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkspaceShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drop <name>...",
		Short: "Delete workspaces",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWorkspaceDrop,
	})
	return cmd
}

func runWorkspaceList(cmd *cobra.Command, _ []string) (err error) {
	env, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer func() { env.cleanup(err) }()
	store, err := env.openStore()
	if err != nil {
		return err
	}
	infos, err := store.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintf(out, "no workspaces in %s\n", store.Dir())
		return nil
	}
	w := len("NAME")
	for _, info := range infos {
		w = max(w, runewidth.StringWidth(info.Name))
	}
	fmt.Fprintf(out, "%s  %-20s  %8s  %s\n", runewidth.FillRight("NAME", w), "SAVED", "BYTES", "VARIABLES")
	for _, info := range infos {
		fmt.Fprintf(out, "%s  %-20s  %8d  %s\n",
			runewidth.FillRight(info.Name, w),
			info.SavedAt.Local().Format(time.DateTime),
			info.Size,
			strings.Join(info.Vars, ","))
	}
	return nil
}

func runWorkspaceShow(cmd *cobra.Command, args []string) (err error) {
	env, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer func() { env.cleanup(err) }()
	store, err := env.openStore()
	if err != nil {
		return err
	}
	vars, ok, err := store.Load(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return octerr.Usage(nil, "no workspace named %q", args[0])
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprint(cmd.OutOrStdout(), env.printer.Render(name, vars[name]))
	}
	return nil
}

func runWorkspaceDrop(cmd *cobra.Command, args []string) (err error) {
	env, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer func() { env.cleanup(err) }()
	store, err := env.openStore()
	if err != nil {
		return err
	}
	for _, name := range args {
		ok, err := store.Drop(name)
		if err != nil {
			return err
		}
		if !ok {
			return octerr.Usage(nil, "no workspace named %q", name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", name)
	}
	return nil
}
