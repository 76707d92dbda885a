package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"metad/internal/config"
	"metad/internal/fileutil"
	"metad/internal/ledger"
	"metad/internal/logging"
	"metad/internal/runconfig"
	"metad/internal/runstore"
	"metad/internal/services"
)

// LockName is the exclusive lock file guarding a run directory against
// concurrent pipeline instances.
const LockName = "run.lock"

// Engine is the subset of the simulation engine client the stages invoke.
type Engine interface {
	Pdb2gmx(ctx context.Context, dir, structure, forceField, waterModel string) error
	Editconf(ctx context.Context, dir, boxShape string, edgeNm float64) error
	Solvate(ctx context.Context, dir string) error
	Genion(ctx context.Context, dir string, molarity float64) error
	MakeNdx(ctx context.Context, dir string) error
	Grompp(ctx context.Context, dir, mdp, coords, output string) error
	Mdrun(ctx context.Context, dir, deffnm, plumedFile string) error
	Check(ctx context.Context, dir, trajectory string) error
}

// Analyzer is the subset of the analysis runner the tail stages invoke.
type Analyzer interface {
	Convergence(ctx context.Context, dir string, bias runconfig.BiasConfig) error
	Plots(ctx context.Context, dir string) error
}

// Orchestrator drives the fixed stage chain against one run directory.
// Execution is strictly sequential; each stage blocks until its external
// delegate exits, then its output artifact is verified before the ledger is
// updated.
type Orchestrator struct {
	cfg      *config.Config
	engine   Engine
	analyzer Analyzer
	store    *runstore.Store
	logger   *slog.Logger
}

// New builds an orchestrator. store may be nil when no registry is in play
// (tests, ad-hoc runs).
func New(cfg *config.Config, engine Engine, analyzer Analyzer, store *runstore.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		engine:   engine,
		analyzer: analyzer,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// runContext carries the per-run state every stage sees.
type runContext struct {
	dir    string
	runID  string
	rc     *runconfig.RunConfig
	ledger *ledger.Ledger
}

// Execute runs every stage that is not yet recorded in the run's ledger.
// A fatal stage failure aborts immediately and the error names the stage so
// the operator can resume past the last successful one.
func (o *Orchestrator) Execute(ctx context.Context, runDir, runID string, rc *runconfig.RunConfig) error {
	lock := flock.New(filepath.Join(runDir, LockName))
	ok, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrStageFailure, "", "acquire run lock", runDir, err)
	}
	if !ok {
		return services.Wrap(services.ErrStageFailure, "", "acquire run lock",
			fmt.Sprintf("another pipeline instance holds %s", runDir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	led, err := ledger.Open(runDir)
	if err != nil {
		return err
	}
	run := &runContext{dir: runDir, runID: runID, rc: rc, ledger: led}
	ctx = services.WithRunID(ctx, runID)

	if err := os.MkdirAll(filepath.Join(runDir, "logs"), 0o755); err != nil {
		return services.Wrap(services.ErrStageFailure, "", "create log directory", runDir, err)
	}

	for _, stage := range o.stages() {
		if err := o.executeStage(ctx, stage, run); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) executeStage(ctx context.Context, stage stageDef, run *runContext) error {
	ctx = services.WithStage(ctx, stage.name)
	logger := logging.WithContext(ctx, o.logger)

	if run.ledger.IsDone(stage.name) {
		logger.Info("stage already complete, skipping")
		return nil
	}

	events, closeEvents := o.openStageLog(run.dir, stage.name)
	defer closeEvents()

	o.recordStage(ctx, run.runID, stage.name)
	logger.Info("stage starting")
	events.Info("starting")

	err := stage.run(ctx, run)
	if err == nil && stage.artifact != "" {
		artifact := filepath.Join(run.dir, stage.artifact)
		if !fileutil.NonEmpty(artifact) {
			err = services.Wrap(services.ErrStageFailure, stage.name, "verify artifact",
				fmt.Sprintf("expected output %s missing or empty", stage.artifact), nil)
		}
	}
	if err != nil {
		if stage.bestEffort && !errors.Is(err, context.Canceled) {
			logger.Warn("best-effort stage failed, continuing", logging.Error(err))
			events.Warn("failed (best effort)", logging.Error(err))
			if markErr := run.ledger.MarkDone(stage.name); markErr != nil {
				return markErr
			}
			return nil
		}
		events.Error("failed", logging.Error(err))
		if errors.Is(err, services.ErrStageFailure) || errors.Is(err, services.ErrExternalTool) ||
			errors.Is(err, services.ErrAnchorNotFound) || errors.Is(err, services.ErrConfiguration) {
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
		return services.Wrap(services.ErrStageFailure, stage.name, "execute", "", err)
	}

	if err := run.ledger.MarkDone(stage.name); err != nil {
		return err
	}
	logger.Info("stage complete")
	events.Info("complete")
	return nil
}

func (o *Orchestrator) recordStage(ctx context.Context, runID, stage string) {
	if o.store == nil || runID == "" {
		return
	}
	if err := o.store.SetStage(ctx, runID, stage); err != nil {
		o.logger.Warn("record current stage", logging.Error(err))
	}
}

// openStageLog opens the stage's own event log inside the run directory,
// returning the logger and a close func. The file is held open for the
// duration of the stage. Failures here never affect the pipeline.
func (o *Orchestrator) openStageLog(runDir, stage string) (*slog.Logger, func()) {
	path := filepath.Join(runDir, "logs", stage+".log")
	logger, closer, err := logging.NewFileLogger(path, o.cfg.Logging.Level, "json")
	if err != nil {
		return logging.NewNop(), func() {}
	}
	return logger.With(logging.String(logging.FieldStage, stage)), func() { _ = closer.Close() }
}
