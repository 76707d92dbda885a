package runconfig

import (
	"fmt"
	"math"
	"strings"

	"metad/internal/services"
)

// CVKind identifies the collective-variable variant.
type CVKind string

const (
	CVDistance     CVKind = "distance"
	CVRMSD         CVKind = "rmsd"
	CVTorsion      CVKind = "torsion"
	CVCoordination CVKind = "coordination"
)

// DefaultCoordinationR0 is the switching distance (nm) applied when a
// coordination CV does not specify one.
const DefaultCoordinationR0 = 0.3

// CVSpec is a tagged variant: the payload shape is determined solely by Kind.
// Construct specs through the New*CV functions so arity is enforced.
type CVSpec struct {
	Kind CVKind

	// Groups holds the two atom-group selectors for distance and coordination.
	Groups [2]string
	// R0 is the coordination switching distance in nm.
	R0 float64
	// Atoms holds the four atom indices for torsion.
	Atoms [4]int
	// Reference is the reference-structure path for rmsd.
	Reference string

	// Sigma is the gaussian width, carried by every variant.
	Sigma float64
}

// NewDistanceCV builds a distance CV between two atom-group selectors.
func NewDistanceCV(groupA, groupB string, sigma float64) (CVSpec, error) {
	if err := validateGroups(CVDistance, groupA, groupB); err != nil {
		return CVSpec{}, err
	}
	if err := validateSigma(CVDistance, sigma); err != nil {
		return CVSpec{}, err
	}
	return CVSpec{Kind: CVDistance, Groups: [2]string{strings.TrimSpace(groupA), strings.TrimSpace(groupB)}, Sigma: sigma}, nil
}

// NewCoordinationCV builds a coordination-number CV between two groups.
// A non-positive r0 falls back to DefaultCoordinationR0.
func NewCoordinationCV(groupA, groupB string, r0, sigma float64) (CVSpec, error) {
	if err := validateGroups(CVCoordination, groupA, groupB); err != nil {
		return CVSpec{}, err
	}
	if err := validateSigma(CVCoordination, sigma); err != nil {
		return CVSpec{}, err
	}
	if r0 <= 0 {
		r0 = DefaultCoordinationR0
	}
	return CVSpec{Kind: CVCoordination, Groups: [2]string{strings.TrimSpace(groupA), strings.TrimSpace(groupB)}, R0: r0, Sigma: sigma}, nil
}

// NewTorsionCV builds a dihedral-angle CV over exactly four atom indices.
func NewTorsionCV(atoms [4]int, sigma float64) (CVSpec, error) {
	for i, atom := range atoms {
		if atom <= 0 {
			return CVSpec{}, services.Wrap(services.ErrConfiguration, "", "cv",
				fmt.Sprintf("torsion atom %d must be a positive index, got %d", i+1, atom), nil)
		}
	}
	if err := validateSigma(CVTorsion, sigma); err != nil {
		return CVSpec{}, err
	}
	return CVSpec{Kind: CVTorsion, Atoms: atoms, Sigma: sigma}, nil
}

// NewRMSDCV builds an RMSD CV against one reference-structure path.
func NewRMSDCV(reference string, sigma float64) (CVSpec, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return CVSpec{}, services.Wrap(services.ErrConfiguration, "", "cv", "rmsd requires a reference structure path", nil)
	}
	if err := validateSigma(CVRMSD, sigma); err != nil {
		return CVSpec{}, err
	}
	return CVSpec{Kind: CVRMSD, Reference: reference, Sigma: sigma}, nil
}

func validateGroups(kind CVKind, groupA, groupB string) error {
	for i, group := range []string{groupA, groupB} {
		if !ValidSelection(group) {
			return services.Wrap(services.ErrConfiguration, "", "cv",
				fmt.Sprintf("%s group %d has invalid atom selection %q (use \"1-50\" or \"1,2,3\")", kind, i+1, strings.TrimSpace(group)), nil)
		}
	}
	return nil
}

func validateSigma(kind CVKind, sigma float64) error {
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return services.Wrap(services.ErrConfiguration, "", "cv",
			fmt.Sprintf("%s sigma must be a positive width, got %g", kind, sigma), nil)
	}
	return nil
}

// ValidSelection reports whether an atom selector uses the accepted grammar:
// either a single range "1-50" or a comma list "1,2,3". Mixing both forms is
// rejected.
func ValidSelection(selection string) bool {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return false
	}
	if strings.Contains(selection, "-") {
		if strings.Contains(selection, ",") {
			return false
		}
		parts := strings.Split(selection, "-")
		if len(parts) != 2 {
			return false
		}
		return isDigits(parts[0]) && isDigits(parts[1])
	}
	for _, part := range strings.Split(selection, ",") {
		if !isDigits(part) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WallBound identifies which side of a CV a wall restrains.
type WallBound string

const (
	WallLower WallBound = "lower"
	WallUpper WallBound = "upper"
)

// WallSpec is a soft restraint on one CV. Specs only exist for non-zero
// thresholds; a zero threshold means "no wall", never a wall at zero.
type WallSpec struct {
	CV    int // 0-based index into the CV list
	Bound WallBound
	At    float64
	Kappa float64
}

// GridSpec carries one (min, max, bins) triple per CV for the bias grid.
type GridSpec struct {
	Min  []float64
	Max  []float64
	Bins []int
}

// BiasConfig holds the bias-deposition parameters and the CV design.
type BiasConfig struct {
	HeightKJ     float64
	PaceSteps    int
	Factor       float64
	TemperatureK float64
	PrintStride  int
	Walkers      int
	CVs          []CVSpec
	Walls        []WallSpec
	Grid         *GridSpec
}

// ForceFieldOrigin records where the force field comes from.
type ForceFieldOrigin string

const (
	ForceFieldBundled ForceFieldOrigin = "bundled"
	ForceFieldSystem  ForceFieldOrigin = "system"
)

// ForceField is the selected force field and its origin.
type ForceField struct {
	Name   string
	Origin ForceFieldOrigin
}

// Box describes the simulation box and solvation parameters.
type Box struct {
	Shape       string
	EdgeNm      float64
	WaterModel  string
	IonMolarity float64
}

// Production describes the production-run length. Steps is derived once at
// construction and persisted; it is never recomputed.
type Production struct {
	TimeNs     float64
	TimestepPs float64
	Steps      int64
}

// RunConfig is the complete description of one pipeline run. It is built once
// (fresh capture) or reconstructed once (resume) and never mutated afterwards.
type RunConfig struct {
	Protein      string
	Ligand       string
	ForceField   ForceField
	Box          Box
	Production   Production
	TemperatureK float64
	Bias         BiasConfig
}

// HasLigand reports whether the run includes a ligand to splice into the
// topology document.
func (rc *RunConfig) HasLigand() bool {
	return strings.TrimSpace(rc.Ligand) != ""
}

func (bc *BiasConfig) validate() error {
	if len(bc.CVs) == 0 {
		return services.Wrap(services.ErrConfiguration, "", "bias", "at least one CV is required", nil)
	}
	if bc.HeightKJ <= 0 {
		return services.Wrap(services.ErrConfiguration, "", "bias", fmt.Sprintf("height must be positive, got %g", bc.HeightKJ), nil)
	}
	if bc.PaceSteps <= 0 {
		return services.Wrap(services.ErrConfiguration, "", "bias", fmt.Sprintf("pace must be positive, got %d", bc.PaceSteps), nil)
	}
	if bc.Factor <= 1 {
		return services.Wrap(services.ErrConfiguration, "", "bias", fmt.Sprintf("bias factor must exceed 1, got %g", bc.Factor), nil)
	}
	if bc.TemperatureK <= 0 {
		return services.Wrap(services.ErrConfiguration, "", "bias", fmt.Sprintf("temperature must be positive, got %g", bc.TemperatureK), nil)
	}
	for i, wall := range bc.Walls {
		if wall.CV < 0 || wall.CV >= len(bc.CVs) {
			return services.Wrap(services.ErrConfiguration, "", "bias",
				fmt.Sprintf("wall %d targets CV %d, but only %d CVs are defined", i, wall.CV+1, len(bc.CVs)), nil)
		}
		if wall.Bound != WallLower && wall.Bound != WallUpper {
			return services.Wrap(services.ErrConfiguration, "", "bias", fmt.Sprintf("wall %d has unknown bound %q", i, wall.Bound), nil)
		}
		if wall.At == 0 {
			return services.Wrap(services.ErrConfiguration, "", "bias", fmt.Sprintf("wall %d has zero position; zero thresholds are filtered at capture", i), nil)
		}
	}
	if bc.Grid != nil {
		n := len(bc.CVs)
		if len(bc.Grid.Min) != n || len(bc.Grid.Max) != n || len(bc.Grid.Bins) != n {
			return services.Wrap(services.ErrConfiguration, "", "bias",
				fmt.Sprintf("grid vectors must have one entry per CV (%d), got min=%d max=%d bins=%d",
					n, len(bc.Grid.Min), len(bc.Grid.Max), len(bc.Grid.Bins)), nil)
		}
	}
	return nil
}
