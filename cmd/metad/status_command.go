package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"metad/internal/config"
	"metad/internal/ledger"
	"metad/internal/pipeline"
	"metad/internal/runstore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-dir>",
		Short: "Show stage progress for a run directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runDir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			led, err := ledger.Open(runDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run directory: %s\n", runDir)
			printRegistryEntry(cmd, ctx, cfg, runDir)

			rows := make([][]string, 0, len(pipeline.StageNames()))
			next := ""
			for _, name := range pipeline.StageNames() {
				state := "pending"
				if led.IsDone(name) {
					state = "done"
				} else if next == "" {
					next = name
					state = "next"
				}
				rows = append(rows, []string{name, state})
			}
			fmt.Fprintln(out, renderTable([]string{"Stage", "State"}, rows, nil))
			fmt.Fprintf(out, "%d/%d stages complete\n", led.Count(), len(pipeline.StageNames()))
			if next != "" {
				fmt.Fprintf(out, "Next stage: %s\n", next)
			}
			return nil
		},
	}
}

func printRegistryEntry(cmd *cobra.Command, _ *commandContext, cfg *config.Config, runDir string) {
	store, err := runstore.Open(cfg)
	if err != nil {
		return
	}
	defer store.Close()
	run, err := store.GetByPath(cmd.Context(), runDir)
	if err != nil {
		if !errors.Is(err, runstore.ErrNotFound) {
			fmt.Fprintf(cmd.ErrOrStderr(), "registry lookup failed: %v\n", err)
		}
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered: %s (%s), protein %s\n", run.ID, run.Status, run.Protein)
}
