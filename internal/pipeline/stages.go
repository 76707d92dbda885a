package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"metad/internal/analysis"
	"metad/internal/fileutil"
	"metad/internal/gromacs"
	"metad/internal/logging"
	"metad/internal/plumed"
	"metad/internal/services"
	"metad/internal/topology"
)

// Stage names recorded in the ledger. The chain order is fixed.
const (
	StageBuildSystem      = "build_system"
	StageIndexGroups      = "index_groups"
	StageMinimization     = "minimization"
	StageNvtEquilibration = "nvt_equilibration"
	StageNptEquilibration = "npt_equilibration"
	StageGeneratePlumed   = "generate_plumed"
	StageProduction       = "production"
	StageQualityControl   = "quality_control"
	StageConvergence      = "convergence_analysis"
	StagePlotting         = "plotting"
	StageSummary          = "summary"
)

// SummaryName is the run report written by the summary stage.
const SummaryName = "summary.txt"

type stageDef struct {
	name       string
	bestEffort bool
	// artifact, when set, is a run-dir-relative file that must exist and be
	// non-empty after the stage for it to count as successful.
	artifact string
	run      func(ctx context.Context, run *runContext) error
}

// StageNames returns the chain in execution order.
func StageNames() []string {
	return []string{
		StageBuildSystem,
		StageIndexGroups,
		StageMinimization,
		StageNvtEquilibration,
		StageNptEquilibration,
		StageGeneratePlumed,
		StageProduction,
		StageQualityControl,
		StageConvergence,
		StagePlotting,
		StageSummary,
	}
}

func (o *Orchestrator) stages() []stageDef {
	return []stageDef{
		{name: StageBuildSystem, artifact: "solv_ions.gro", run: o.buildSystem},
		{name: StageIndexGroups, artifact: "index.ndx", run: o.indexGroups},
		{name: StageMinimization, artifact: "em.gro", run: o.minimization},
		{name: StageNvtEquilibration, artifact: "nvt.gro", run: o.nvtEquilibration},
		{name: StageNptEquilibration, artifact: "npt.gro", run: o.nptEquilibration},
		{name: StageGeneratePlumed, artifact: plumed.DirectiveName, run: o.generatePlumed},
		{name: StageProduction, artifact: plumed.HillsName, run: o.production},
		{name: StageQualityControl, bestEffort: true, run: o.qualityControl},
		{name: StageConvergence, artifact: filepath.Join(analysis.AnalysisDir, "convergence_report.txt"), run: o.convergenceAnalysis},
		{name: StagePlotting, bestEffort: true, run: o.plotting},
		{name: StageSummary, artifact: SummaryName, run: o.summary},
	}
}

// buildSystem converts the input structure into a solvated, neutralized
// system and splices the ligand into the topology when one is present.
func (o *Orchestrator) buildSystem(ctx context.Context, run *runContext) error {
	rc := run.rc
	if err := gromacs.WriteParameterFiles(run.dir, rc); err != nil {
		return err
	}
	structure := rc.Protein
	// Prefer the copy staged into the run directory; the original path may
	// have moved between capture and resume.
	if staged := filepath.Base(rc.Protein); fileutil.Exists(filepath.Join(run.dir, staged)) {
		structure = staged
	}
	if err := o.engine.Pdb2gmx(ctx, run.dir, structure, rc.ForceField.Name, rc.Box.WaterModel); err != nil {
		return err
	}
	if rc.HasLigand() {
		if err := o.spliceLigand(run); err != nil {
			return err
		}
	}
	if err := o.engine.Editconf(ctx, run.dir, rc.Box.Shape, rc.Box.EdgeNm); err != nil {
		return err
	}
	if err := o.engine.Solvate(ctx, run.dir); err != nil {
		return err
	}
	if err := o.engine.Grompp(ctx, run.dir, gromacs.IonsMDP, "solvated.gro", "ions.tpr"); err != nil {
		return err
	}
	return o.engine.Genion(ctx, run.dir, rc.Box.IonMolarity)
}

// spliceLigand patches the topology document with the ligand includes, the
// restraint block, and the molecule-count row. Every insertion is idempotent.
func (o *Orchestrator) spliceLigand(run *runContext) error {
	rc := run.rc
	principal := "Protein_chain_A"
	_, err := topology.PatchFile(filepath.Join(run.dir, "topol.top"),
		topology.LigandParameterInclude(rc.Ligand),
		topology.LigandTopologyInclude(rc.Ligand),
		topology.LigandRestraints(rc.Ligand),
		topology.MoleculeRow(principal, rc.Ligand, 1),
	)
	return err
}

func (o *Orchestrator) indexGroups(ctx context.Context, run *runContext) error {
	return o.engine.MakeNdx(ctx, run.dir)
}

func (o *Orchestrator) minimization(ctx context.Context, run *runContext) error {
	if err := o.engine.Grompp(ctx, run.dir, gromacs.MinimMDP, "solv_ions.gro", "em.tpr"); err != nil {
		return err
	}
	return o.engine.Mdrun(ctx, run.dir, "em", "")
}

func (o *Orchestrator) nvtEquilibration(ctx context.Context, run *runContext) error {
	if err := o.engine.Grompp(ctx, run.dir, gromacs.NvtMDP, "em.gro", "nvt.tpr"); err != nil {
		return err
	}
	return o.engine.Mdrun(ctx, run.dir, "nvt", "")
}

func (o *Orchestrator) nptEquilibration(ctx context.Context, run *runContext) error {
	if err := o.engine.Grompp(ctx, run.dir, gromacs.NptMDP, "nvt.gro", "npt.tpr"); err != nil {
		return err
	}
	return o.engine.Mdrun(ctx, run.dir, "npt", "")
}

// generatePlumed writes the bias directive.
func (o *Orchestrator) generatePlumed(ctx context.Context, run *runContext) error {
	return plumed.WriteFile(run.rc.Bias, filepath.Join(run.dir, plumed.DirectiveName))
}

// production runs the biased simulation. The continuation check lives here
// rather than in generate_plumed: an interrupted production leaves hills and a
// checkpoint behind while generate_plumed is already recorded as done, so on
// resume only this stage sees the history. Marking is idempotent, so re-runs
// are safe.
func (o *Orchestrator) production(ctx context.Context, run *runContext) error {
	if err := o.engine.Grompp(ctx, run.dir, gromacs.ProductionMDP, "npt.gro", "md.tpr"); err != nil {
		return err
	}
	if plumed.IsContinuation(run.dir) {
		logging.WithContext(ctx, o.logger).Info("prior bias history detected, marking directive as continuation")
		if err := plumed.MarkContinuation(filepath.Join(run.dir, plumed.DirectiveName)); err != nil {
			return err
		}
	}
	return o.engine.Mdrun(ctx, run.dir, "md", plumed.DirectiveName)
}

// qualityControl sanity-checks the production trajectory. Best effort: the
// trajectory is consumed, not produced, here.
func (o *Orchestrator) qualityControl(ctx context.Context, run *runContext) error {
	trajectory := "md.xtc"
	if !fileutil.NonEmpty(filepath.Join(run.dir, trajectory)) {
		return services.Wrap(services.ErrStageFailure, StageQualityControl, "check trajectory",
			trajectory+" missing or empty", nil)
	}
	return o.engine.Check(ctx, run.dir, trajectory)
}

func (o *Orchestrator) convergenceAnalysis(ctx context.Context, run *runContext) error {
	return o.analyzer.Convergence(ctx, run.dir, run.rc.Bias)
}

func (o *Orchestrator) plotting(ctx context.Context, run *runContext) error {
	return o.analyzer.Plots(ctx, run.dir)
}

// summary writes the run report: deposited hill count plus the headline run
// parameters, mirroring what the run record captured.
func (o *Orchestrator) summary(ctx context.Context, run *runContext) error {
	hills, err := analysis.CountRows(filepath.Join(run.dir, plumed.HillsName))
	if err != nil {
		return err
	}
	rc := run.rc
	body := fmt.Sprintf(`Run summary
===========
Protein:          %s
Ligand:           %s
Force field:      %s (%s)
Production:       %g ns (%d steps at %g ps)
Temperature:      %g K
Bias factor:      %g
Deposited hills:  %d
Collective vars:  %d
Completed stages: %d
`,
		rc.Protein,
		orDash(rc.Ligand),
		rc.ForceField.Name, rc.ForceField.Origin,
		rc.Production.TimeNs, rc.Production.Steps, rc.Production.TimestepPs,
		rc.Bias.TemperatureK,
		rc.Bias.Factor,
		hills,
		len(rc.Bias.CVs),
		run.ledger.Count(),
	)
	path := filepath.Join(run.dir, SummaryName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return services.Wrap(services.ErrStageFailure, StageSummary, "write summary", path, err)
	}
	logging.WithContext(ctx, o.logger).Info("run summary written",
		logging.Int("hills", hills), logging.String(logging.FieldArtifact, SummaryName))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
