package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"metad/internal/analysis"
	"metad/internal/config"
	"metad/internal/deps"
	"metad/internal/fileutil"
	"metad/internal/gromacs"
	"metad/internal/logging"
	"metad/internal/pipeline"
	"metad/internal/runconfig"
	"metad/internal/runstore"
	"metad/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var resumeDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a fresh interactive run or resume an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir := strings.TrimSpace(resumeDir); dir != "" {
				return runResume(cmd, ctx, dir)
			}
			return runFresh(cmd, ctx)
		},
	}
	cmd.Flags().StringVar(&resumeDir, "resume", "", "Resume the run in the given directory")
	return cmd
}

func runFresh(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	input, err := captureInteractive(cmd, cfg)
	if err != nil {
		return err
	}
	rc, err := runconfig.New(*input)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	runDir := filepath.Join(cfg.Paths.RunsDir, runName(rc.Protein, runID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	if err := runconfig.Save(rc, filepath.Join(runDir, runconfig.RecordName)); err != nil {
		return err
	}
	if err := stageInputStructure(rc.Protein, runDir); err != nil {
		return err
	}

	store, err := runstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Create(cmd.Context(), &runstore.Run{
		ID:      runID,
		Path:    runDir,
		Protein: rc.Protein,
		Ligand:  rc.Ligand,
		Status:  runstore.StatusRunning,
	}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run directory: %s\n", runDir)
	return executeRun(cmd.Context(), cfg, logger, store, runDir, runID, rc)
}

func runResume(cmd *cobra.Command, ctx *commandContext, dir string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	runDir, err := config.ExpandPath(dir)
	if err != nil {
		return err
	}
	rc, err := runconfig.Load(filepath.Join(runDir, runconfig.RecordName))
	if err != nil {
		return err
	}

	store, err := runstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var runID string
	run, err := store.GetByPath(cmd.Context(), runDir)
	switch {
	case err == nil:
		runID = run.ID
		if err := store.SetStatus(cmd.Context(), runID, runstore.StatusRunning); err != nil {
			return err
		}
	case errors.Is(err, runstore.ErrNotFound):
		// A run directory created elsewhere is still resumable; register it
		// so status and runs see it.
		runID = uuid.NewString()
		if err := store.Create(cmd.Context(), &runstore.Run{
			ID:      runID,
			Path:    runDir,
			Protein: rc.Protein,
			Ligand:  rc.Ligand,
			Status:  runstore.StatusRunning,
		}); err != nil {
			return err
		}
	default:
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resuming run in %s\n", runDir)
	return executeRun(cmd.Context(), cfg, logger, store, runDir, runID, rc)
}

// executeRun wires the engine, the analyzer, and the orchestrator together,
// verifies external dependencies once, and drives the stage chain.
func executeRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *runstore.Store, runDir, runID string, rc *runconfig.RunConfig) error {
	client := gromacs.New(cfg.Engine, logger)

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	statuses = append(statuses, deps.CheckBiasSupport(ctx, client))
	if err := deps.Verify(statuses); err != nil {
		_ = store.SetStatus(ctx, runID, runstore.StatusFailed)
		return err
	}

	runner := analysis.NewRunner(cfg.Engine, logger)
	orchestrator := pipeline.New(cfg, client, runner, store, logger)

	logger.Info("pipeline starting",
		logging.String(logging.FieldRunDir, runDir),
		logging.String(logging.FieldRunID, runID))

	if err := orchestrator.Execute(ctx, runDir, runID, rc); err != nil {
		_ = store.SetStatus(ctx, runID, runstore.StatusFailed)
		logger.Error("pipeline failed", logging.String(logging.FieldRunDir, runDir), logging.Error(err))
		return err
	}

	if err := store.SetStatus(ctx, runID, runstore.StatusCompleted); err != nil {
		return err
	}
	logger.Info("pipeline complete", logging.String(logging.FieldRunDir, runDir))
	return nil
}

// stageInputStructure copies the input structure into the run directory so
// the run is self-contained and resumable after the original file moves.
func stageInputStructure(structure, runDir string) error {
	src, err := config.ExpandPath(structure)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(src); statErr != nil {
		return services.Wrap(services.ErrConfiguration, "", "stage input",
			fmt.Sprintf("structure file %s not readable", structure), statErr)
	}
	dst := filepath.Join(runDir, filepath.Base(src))
	if src == dst {
		return nil
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return services.Wrap(services.ErrConfiguration, "", "stage input", src, err)
	}
	return nil
}

func runName(protein, runID string) string {
	base := strings.TrimSuffix(filepath.Base(protein), filepath.Ext(protein))
	if base == "" || base == "." {
		base = "run"
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return base + "-" + short
}
