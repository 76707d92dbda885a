package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"metad/internal/config"
	"metad/internal/runconfig"
	"metad/internal/services"
)

// captureInteractive collects a full run description from the operator. It is
// the only interactive surface; everything downstream reads the validated
// RunConfig.
func captureInteractive(cmd *cobra.Command, cfg *config.Config) (*runconfig.CaptureInput, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !isTerminal(f.Fd()) {
		return nil, services.Wrap(services.ErrConfiguration, "", "capture",
			"interactive capture requires a terminal (use --resume <dir> for unattended runs)", nil)
	}
	p := &prompter{
		reader: bufio.NewReader(in),
		out:    cmd.OutOrStdout(),
	}
	return p.collect(cfg.Defaults)
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func (p *prompter) collect(defaults config.Defaults) (*runconfig.CaptureInput, error) {
	input := &runconfig.CaptureInput{}
	var err error

	if input.Protein, err = p.askString("Protein structure file", ""); err != nil {
		return nil, err
	}
	if input.Ligand, err = p.askString("Ligand residue name (empty for none)", ""); err != nil {
		return nil, err
	}
	if input.ForceFieldName, err = p.askString("Force field", defaults.ForceField); err != nil {
		return nil, err
	}
	origin, err := p.askString("Force field origin (bundled/system)", string(runconfig.ForceFieldSystem))
	if err != nil {
		return nil, err
	}
	input.ForceFieldOrigin = runconfig.ForceFieldOrigin(strings.ToLower(origin))
	if input.BoxShape, err = p.askString("Box shape", defaults.BoxShape); err != nil {
		return nil, err
	}
	if input.BoxEdgeNm, err = p.askFloat("Box edge distance (nm)", defaults.BoxEdgeNm); err != nil {
		return nil, err
	}
	if input.WaterModel, err = p.askString("Water model", defaults.WaterModel); err != nil {
		return nil, err
	}
	if input.IonMolarity, err = p.askFloat("Ion molarity (mol/L)", defaults.IonMolarity); err != nil {
		return nil, err
	}
	if input.TimeNs, err = p.askFloat("Production time (ns)", defaults.ProductionNs); err != nil {
		return nil, err
	}
	if input.TimestepPs, err = p.askFloat("Timestep (ps)", defaults.TimestepPs); err != nil {
		return nil, err
	}
	if input.TemperatureK, err = p.askFloat("Temperature (K)", defaults.TemperatureK); err != nil {
		return nil, err
	}
	if input.BiasHeight, err = p.askFloat("Gaussian height (kJ/mol)", defaults.BiasHeight); err != nil {
		return nil, err
	}
	if input.BiasPace, err = p.askInt("Deposition pace (steps)", defaults.BiasPace); err != nil {
		return nil, err
	}
	if input.BiasFactor, err = p.askFloat("Bias factor", defaults.BiasFactor); err != nil {
		return nil, err
	}
	if input.PrintStride, err = p.askInt("Print stride (steps, 0 = pace)", defaults.PrintStride); err != nil {
		return nil, err
	}
	if input.Walkers, err = p.askInt("Walkers (1 = single)", 1); err != nil {
		return nil, err
	}

	count, err := p.askInt("Number of collective variables", 1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		cv, err := p.collectCV(i + 1)
		if err != nil {
			return nil, err
		}
		input.CVs = append(input.CVs, cv)
	}

	useGrid, err := p.askString("Use a bias grid? (y/N)", "n")
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(useGrid), "y") {
		for i := range input.CVs {
			gmin, err := p.askFloat(fmt.Sprintf("Grid min for cv%d", i+1), 0)
			if err != nil {
				return nil, err
			}
			gmax, err := p.askFloat(fmt.Sprintf("Grid max for cv%d", i+1), 0)
			if err != nil {
				return nil, err
			}
			bins, err := p.askInt(fmt.Sprintf("Grid bins for cv%d", i+1), 250)
			if err != nil {
				return nil, err
			}
			input.GridMin = append(input.GridMin, gmin)
			input.GridMax = append(input.GridMax, gmax)
			input.GridBins = append(input.GridBins, bins)
		}
	}

	return input, nil
}

func (p *prompter) collectCV(n int) (runconfig.CVInput, error) {
	var cv runconfig.CVInput

	kind, err := p.askString(fmt.Sprintf("CV %d kind (distance/rmsd/torsion/coordination)", n), string(runconfig.CVDistance))
	if err != nil {
		return cv, err
	}
	cv.Kind = runconfig.CVKind(strings.ToLower(strings.TrimSpace(kind)))

	switch cv.Kind {
	case runconfig.CVDistance, runconfig.CVCoordination:
		if cv.GroupA, err = p.askString("  Group A atoms (range 1-50 or list 1,2,3)", ""); err != nil {
			return cv, err
		}
		if cv.GroupB, err = p.askString("  Group B atoms", ""); err != nil {
			return cv, err
		}
		if cv.Kind == runconfig.CVCoordination {
			if cv.R0, err = p.askFloat("  Switching distance R_0 (nm)", runconfig.DefaultCoordinationR0); err != nil {
				return cv, err
			}
		}
	case runconfig.CVTorsion:
		for i := 0; i < 4; i++ {
			atom, err := p.askInt(fmt.Sprintf("  Torsion atom %d", i+1), 0)
			if err != nil {
				return cv, err
			}
			cv.Atoms[i] = atom
		}
	case runconfig.CVRMSD:
		if cv.Reference, err = p.askString("  Reference structure file", ""); err != nil {
			return cv, err
		}
	}

	if cv.Sigma, err = p.askFloat("  Sigma", 0.05); err != nil {
		return cv, err
	}
	if cv.LowerWallAt, err = p.askFloat("  Lower wall position (0 = none)", 0); err != nil {
		return cv, err
	}
	if cv.LowerWallAt != 0 {
		if cv.LowerWallKappa, err = p.askFloat("  Lower wall kappa", runconfig.DefaultWallKappa); err != nil {
			return cv, err
		}
	}
	if cv.UpperWallAt, err = p.askFloat("  Upper wall position (0 = none)", 0); err != nil {
		return cv, err
	}
	if cv.UpperWallAt != 0 {
		if cv.UpperWallKappa, err = p.askFloat("  Upper wall kappa", runconfig.DefaultWallKappa); err != nil {
			return cv, err
		}
	}
	return cv, nil
}

func (p *prompter) askString(label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, fallback)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "capture", "input ended before "+label, err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return fallback, nil
	}
	return value, nil
}

func (p *prompter) askFloat(label string, fallback float64) (float64, error) {
	raw, err := p.askString(label, strconv.FormatFloat(fallback, 'g', -1, 64))
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "", "capture",
			fmt.Sprintf("%s: %q is not a number", label, raw), nil)
	}
	return value, nil
}

func (p *prompter) askInt(label string, fallback int) (int, error) {
	raw, err := p.askString(label, strconv.Itoa(fallback))
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "", "capture",
			fmt.Sprintf("%s: %q is not an integer", label, raw), nil)
	}
	return value, nil
}
