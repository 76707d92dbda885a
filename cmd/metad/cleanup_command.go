package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metad/internal/config"
	"metad/internal/pipeline"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <run-dir>",
		Short: "Delete transient artifacts from a run directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, ctx, args[0])
		},
	}
}

func runCleanup(cmd *cobra.Command, _ *commandContext, dir string) error {
	runDir, err := config.ExpandPath(dir)
	if err != nil {
		return err
	}
	removed, err := pipeline.Cleanup(runDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintf(out, "Nothing to clean in %s\n", runDir)
		return nil
	}
	for _, name := range removed {
		fmt.Fprintf(out, "removed %s\n", name)
	}
	fmt.Fprintf(out, "Removed %d transient artifact(s) from %s\n", len(removed), runDir)
	return nil
}
