package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"metad/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List registered runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs registered.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				ligand := run.Ligand
				if ligand == "" {
					ligand = "-"
				}
				stage := run.CurrentStage
				if stage == "" {
					stage = "-"
				}
				rows = append(rows, []string{
					shortID(run.ID),
					run.Protein,
					ligand,
					string(run.Status),
					stage,
					run.UpdatedAt.Local().Format(time.RFC3339),
					run.Path,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Protein", "Ligand", "Status", "Stage", "Updated", "Directory"},
				rows, nil))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
