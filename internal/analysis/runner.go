package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"metad/internal/config"
	"metad/internal/fileutil"
	"metad/internal/logging"
	"metad/internal/plumed"
	"metad/internal/runconfig"
	"metad/internal/services"
)

// Script names resolved against the configured script directory.
const (
	ConvergenceScript = "analyze_convergence.py"
	PlotScript        = "plot_metad.py"
)

// Output directories the scripts populate inside a run directory.
const (
	AnalysisDir = "analysis"
	PlotsDir    = "plots"
)

// commandContext is swapped out by tests to stub the interpreter.
var commandContext = exec.CommandContext

// Runner invokes the bundled analysis scripts against a run directory's bias
// output files.
type Runner struct {
	python    string
	scriptDir string
	logger    *slog.Logger
}

// NewRunner builds a runner from the engine configuration.
func NewRunner(engine config.Engine, logger *slog.Logger) *Runner {
	return &Runner{
		python:    engine.PythonBinary,
		scriptDir: engine.ScriptDir,
		logger:    logging.NewComponentLogger(logger, "analysis"),
	}
}

// Convergence reconstructs the free-energy surface from the deposited hills
// and writes the convergence report under analysis/.
func (r *Runner) Convergence(ctx context.Context, dir string, bias runconfig.BiasConfig) error {
	args := []string{
		"--hills", plumed.HillsName,
		"--temp", strconv.FormatFloat(bias.TemperatureK, 'g', -1, 64),
		"--biasfactor", strconv.FormatFloat(bias.Factor, 'g', -1, 64),
		"--output-dir", AnalysisDir,
	}
	if fileutil.NonEmpty(filepath.Join(dir, plumed.ColvarName)) {
		args = append(args, "--colvar", plumed.ColvarName)
	}
	return r.run(ctx, dir, ConvergenceScript, args...)
}

// Plots renders the collective-variable and free-energy figures under plots/.
// Inputs produced by earlier analysis are passed along when present.
func (r *Runner) Plots(ctx context.Context, dir string) error {
	args := []string{
		"--colvar", plumed.ColvarName,
		"--hills", plumed.HillsName,
		"--output-dir", PlotsDir,
	}
	if fes := filepath.Join(AnalysisDir, "fes.dat"); fileutil.NonEmpty(filepath.Join(dir, fes)) {
		args = append(args, "--fes", fes)
	}
	if dg := filepath.Join(AnalysisDir, "deltaG_vs_time.dat"); fileutil.NonEmpty(filepath.Join(dir, dg)) {
		args = append(args, "--deltaG", dg)
	}
	return r.run(ctx, dir, PlotScript, args...)
}

func (r *Runner) run(ctx context.Context, dir, script string, args ...string) error {
	full := append([]string{filepath.Join(r.scriptDir, script)}, args...)
	cmd := commandContext(ctx, r.python, full...) //nolint:gosec
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "", script, "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "", script, "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "", script, "start", err)
	}

	logger := logging.WithContext(ctx, r.logger)
	var wg sync.WaitGroup
	scan := func(reader io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			logger.Debug(scanner.Text(), logging.String("script", script))
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "", script, fmt.Sprintf("%s %s", r.python, strings.Join(full, " ")), err)
	}
	return nil
}
