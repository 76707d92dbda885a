package plumed

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"metad/internal/runconfig"
)

const (
	// DirectiveName is the generated bias-directive filename.
	DirectiveName = "plumed.dat"
	// HillsName is the bias-history file the engine appends deposited hills to.
	HillsName = "HILLS"
	// ColvarName is the CV trajectory file written by the PRINT action.
	ColvarName = "COLVAR"
)

// Generate renders the bias-directive document for a bias configuration.
// Equal configurations always yield byte-identical documents: a later re-run
// compares its regenerated directive against the one on disk to decide
// whether it continues the same design.
func Generate(bias runconfig.BiasConfig) string {
	var b strings.Builder

	b.WriteString("# Well-Tempered Metadynamics directives\n")
	fmt.Fprintf(&b, "# temperature=%s K biasfactor=%s height=%s kJ/mol pace=%d steps\n",
		formatFloat(bias.TemperatureK), formatFloat(bias.Factor), formatFloat(bias.HeightKJ), bias.PaceSteps)
	b.WriteString("\n")

	labels := make([]string, len(bias.CVs))
	sigmas := make([]string, len(bias.CVs))
	for i, cv := range bias.CVs {
		label := fmt.Sprintf("cv%d", i+1)
		labels[i] = label
		sigmas[i] = formatFloat(cv.Sigma)
		writeCV(&b, label, cv)
	}

	b.WriteString(metadLine(labels, sigmas, bias))
	b.WriteString("\n")

	for _, wall := range bias.Walls {
		b.WriteString(wallLine(labels[wall.CV], wall))
		b.WriteString("\n")
	}

	stride := bias.PrintStride
	if stride <= 0 {
		stride = bias.PaceSteps
	}
	fmt.Fprintf(&b, "PRINT ARG=%s,metad.bias STRIDE=%d FILE=%s\n", strings.Join(labels, ","), stride, ColvarName)
	fmt.Fprintf(&b, "FLUSH STRIDE=%d\n", stride*10)

	return b.String()
}

// WriteFile renders the directive document to path.
func WriteFile(bias runconfig.BiasConfig, path string) error {
	return os.WriteFile(path, []byte(Generate(bias)), 0o644)
}

func writeCV(b *strings.Builder, label string, cv runconfig.CVSpec) {
	switch cv.Kind {
	case runconfig.CVDistance:
		if grouped(cv.Groups[0]) || grouped(cv.Groups[1]) {
			fmt.Fprintf(b, "%s_a: COM ATOMS=%s\n", label, cv.Groups[0])
			fmt.Fprintf(b, "%s_b: COM ATOMS=%s\n", label, cv.Groups[1])
			fmt.Fprintf(b, "%s: DISTANCE ATOMS=%s_a,%s_b NOPBC\n", label, label, label)
		} else {
			fmt.Fprintf(b, "%s: DISTANCE ATOMS=%s,%s NOPBC\n", label, cv.Groups[0], cv.Groups[1])
		}
	case runconfig.CVCoordination:
		fmt.Fprintf(b, "%s: COORDINATION GROUPA=%s GROUPB=%s R_0=%s\n", label, cv.Groups[0], cv.Groups[1], formatFloat(cv.R0))
	case runconfig.CVTorsion:
		fmt.Fprintf(b, "%s: TORSION ATOMS=%d,%d,%d,%d\n", label, cv.Atoms[0], cv.Atoms[1], cv.Atoms[2], cv.Atoms[3])
	case runconfig.CVRMSD:
		fmt.Fprintf(b, "%s: RMSD REFERENCE=%s TYPE=OPTIMAL\n", label, cv.Reference)
	}
}

func metadLine(labels, sigmas []string, bias runconfig.BiasConfig) string {
	parts := []string{
		"metad: METAD",
		"ARG=" + strings.Join(labels, ","),
		"SIGMA=" + strings.Join(sigmas, ","),
		"HEIGHT=" + formatFloat(bias.HeightKJ),
		"PACE=" + strconv.Itoa(bias.PaceSteps),
		"BIASFACTOR=" + formatFloat(bias.Factor),
		"TEMP=" + formatFloat(bias.TemperatureK),
	}
	if bias.Grid != nil {
		parts = append(parts,
			"GRID_MIN="+joinFloats(bias.Grid.Min),
			"GRID_MAX="+joinFloats(bias.Grid.Max),
			"GRID_BIN="+joinInts(bias.Grid.Bins),
		)
	}
	if bias.Walkers > 1 {
		parts = append(parts,
			"WALKERS_N="+strconv.Itoa(bias.Walkers),
			"WALKERS_DIR=./",
			"WALKERS_RSTRIDE="+strconv.Itoa(bias.PaceSteps),
		)
	}
	parts = append(parts, "FILE="+HillsName)
	return strings.Join(parts, " ")
}

func wallLine(label string, wall runconfig.WallSpec) string {
	action := "UPPER_WALLS"
	if wall.Bound == runconfig.WallLower {
		action = "LOWER_WALLS"
	}
	return fmt.Sprintf("wall_%s_%s: %s ARG=%s AT=%s KAPPA=%s EXP=2 EPS=1 OFFSET=0",
		label, wall.Bound, action, label, formatFloat(wall.At), formatFloat(wall.Kappa))
}

// grouped reports whether a selector names more than one atom, which requires
// a COM virtual site for a distance CV.
func grouped(selection string) bool {
	return strings.Contains(selection, "-") || strings.Contains(selection, ",")
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = formatFloat(value)
	}
	return strings.Join(parts, ",")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.Itoa(value)
	}
	return strings.Join(parts, ",")
}
