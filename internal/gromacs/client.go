package gromacs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"metad/internal/config"
	"metad/internal/logging"
	"metad/internal/services"
)

// commandContext is swapped out by tests to stub the external engine.
var commandContext = exec.CommandContext

// Client invokes the simulation engine as a batch subprocess. The engine is a
// black box: a call either produces its expected output artifact or fails.
type Client struct {
	binary     string
	mdrunExtra []string
	gpu        bool
	logger     *slog.Logger
}

// New builds a client from the engine configuration.
func New(engine config.Engine, logger *slog.Logger) *Client {
	return &Client{
		binary:     engine.GmxBinary,
		mdrunExtra: append([]string(nil), engine.MdrunExtra...),
		gpu:        engine.GpuAccelerate,
		logger:     logging.NewComponentLogger(logger, "gromacs"),
	}
}

// Binary returns the configured engine executable name.
func (c *Client) Binary() string {
	return c.binary
}

// Pdb2gmx converts a structure into a processed topology and coordinate file.
func (c *Client) Pdb2gmx(ctx context.Context, dir, structure, forceField, waterModel string) error {
	return c.run(ctx, dir, "", "pdb2gmx",
		"-f", structure,
		"-o", "processed.gro",
		"-p", "topol.top",
		"-ff", forceField,
		"-water", waterModel,
		"-ignh")
}

// Editconf centers the system in a box of the requested shape and edge.
func (c *Client) Editconf(ctx context.Context, dir, boxShape string, edgeNm float64) error {
	return c.run(ctx, dir, "", "editconf",
		"-f", "processed.gro",
		"-o", "boxed.gro",
		"-c",
		"-d", formatFloat(edgeNm),
		"-bt", boxShape)
}

// Solvate fills the box with the water model's solvent configuration.
func (c *Client) Solvate(ctx context.Context, dir string) error {
	return c.run(ctx, dir, "", "solvate",
		"-cp", "boxed.gro",
		"-cs", "spc216.gro",
		"-o", "solvated.gro",
		"-p", "topol.top")
}

// Genion replaces solvent molecules with ions up to the requested molarity.
// The solvent group is selected on stdin; the engine offers no flag for it.
func (c *Client) Genion(ctx context.Context, dir string, molarity float64) error {
	return c.run(ctx, dir, "SOL\n", "genion",
		"-s", "ions.tpr",
		"-o", "solv_ions.gro",
		"-p", "topol.top",
		"-pname", "NA",
		"-nname", "CL",
		"-neutral",
		"-conc", formatFloat(molarity))
}

// MakeNdx writes the default index groups for the system.
func (c *Client) MakeNdx(ctx context.Context, dir string) error {
	return c.run(ctx, dir, "q\n", "make_ndx",
		"-f", "solv_ions.gro",
		"-o", "index.ndx")
}

// Grompp assembles a portable run input from a parameter file, coordinates,
// and the topology.
func (c *Client) Grompp(ctx context.Context, dir, mdp, coords, output string) error {
	return c.run(ctx, dir, "", "grompp",
		"-f", mdp,
		"-c", coords,
		"-p", "topol.top",
		"-o", output,
		"-maxwarn", "2")
}

// Mdrun executes a prepared run input. plumedFile, when non-empty, hands the
// bias-directive document to the patched engine.
func (c *Client) Mdrun(ctx context.Context, dir, deffnm, plumedFile string) error {
	args := []string{"mdrun", "-deffnm", deffnm}
	if plumedFile != "" {
		args = append(args, "-plumed", plumedFile)
	}
	if c.gpu {
		args = append(args, "-nb", "gpu")
	}
	args = append(args, c.mdrunExtra...)
	return c.run(ctx, dir, "", args...)
}

// Check runs the engine's integrity check over a trajectory file.
func (c *Client) Check(ctx context.Context, dir, trajectory string) error {
	return c.run(ctx, dir, "", "check", "-f", trajectory)
}

// MdrunHelp returns the mdrun usage text, used by the dependency preflight to
// detect whether the engine build carries bias support.
func (c *Client) MdrunHelp(ctx context.Context) (string, error) {
	cmd := commandContext(ctx, c.binary, "mdrun", "-h")
	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "", "mdrun -h", "", err)
	}
	return string(output), nil
}

func (c *Client) run(ctx context.Context, dir, stdin string, args ...string) error {
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "", args[0], "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "", args[0], "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "", args[0], "start", err)
	}

	logger := logging.WithContext(ctx, c.logger)
	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			logger.Debug(scanner.Text(), logging.String("tool", args[0]))
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "", args[0], fmt.Sprintf("%s %s", c.binary, strings.Join(args, " ")), err)
	}
	return nil
}

func formatFloat(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", value), "0"), ".")
}
