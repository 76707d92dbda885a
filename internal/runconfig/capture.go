package runconfig

import (
	"fmt"
	"math"
	"strings"

	"metad/internal/services"
)

// DefaultWallKappa is the restraint force constant applied when a wall
// threshold is supplied without one.
const DefaultWallKappa = 150

// CVInput is one collective variable as collected from the operator. Fields
// irrelevant to Kind are ignored.
type CVInput struct {
	Kind      CVKind
	GroupA    string
	GroupB    string
	R0        float64
	Atoms     [4]int
	Reference string
	Sigma     float64

	// Wall thresholds for this CV. Zero disables the wall.
	LowerWallAt    float64
	LowerWallKappa float64
	UpperWallAt    float64
	UpperWallKappa float64
}

// CaptureInput is the fully populated answer set produced by the interactive
// collector (an external collaborator). New turns it into a validated
// RunConfig in one shot; no field is read interactively past this point.
type CaptureInput struct {
	Protein          string
	Ligand           string
	ForceFieldName   string
	ForceFieldOrigin ForceFieldOrigin
	BoxShape         string
	BoxEdgeNm        float64
	WaterModel       string
	IonMolarity      float64
	TimeNs           float64
	TimestepPs       float64
	TemperatureK     float64

	BiasHeight  float64
	BiasPace    int
	BiasFactor  float64
	PrintStride int
	Walkers     int

	CVs []CVInput

	// Grid vectors; all three non-empty with one entry per CV, or all empty.
	GridMin  []float64
	GridMax  []float64
	GridBins []int
}

// New validates a capture and constructs the immutable RunConfig, computing
// every derived value (step count, wall filtering) up front.
func New(in CaptureInput) (*RunConfig, error) {
	protein := strings.TrimSpace(in.Protein)
	if protein == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "capture", "protein structure is required", nil)
	}
	if in.ForceFieldOrigin != ForceFieldBundled && in.ForceFieldOrigin != ForceFieldSystem {
		return nil, services.Wrap(services.ErrConfiguration, "", "capture",
			fmt.Sprintf("force field origin must be %q or %q, got %q", ForceFieldBundled, ForceFieldSystem, in.ForceFieldOrigin), nil)
	}
	if in.TimestepPs <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "capture", fmt.Sprintf("timestep must be positive, got %g", in.TimestepPs), nil)
	}
	if in.TimeNs <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "capture", fmt.Sprintf("production time must be positive, got %g", in.TimeNs), nil)
	}

	cvs := make([]CVSpec, 0, len(in.CVs))
	walls := make([]WallSpec, 0)
	for i, cvIn := range in.CVs {
		cv, err := buildCV(cvIn)
		if err != nil {
			return nil, fmt.Errorf("cv %d: %w", i+1, err)
		}
		cvs = append(cvs, cv)
		walls = append(walls, wallsForCV(i, cvIn)...)
	}

	var grid *GridSpec
	if len(in.GridMin) > 0 || len(in.GridMax) > 0 || len(in.GridBins) > 0 {
		grid = &GridSpec{
			Min:  append([]float64(nil), in.GridMin...),
			Max:  append([]float64(nil), in.GridMax...),
			Bins: append([]int(nil), in.GridBins...),
		}
	}

	cfg := &RunConfig{
		Protein: protein,
		Ligand:  strings.TrimSpace(in.Ligand),
		ForceField: ForceField{
			Name:   strings.TrimSpace(in.ForceFieldName),
			Origin: in.ForceFieldOrigin,
		},
		Box: Box{
			Shape:       strings.TrimSpace(in.BoxShape),
			EdgeNm:      in.BoxEdgeNm,
			WaterModel:  strings.TrimSpace(in.WaterModel),
			IonMolarity: in.IonMolarity,
		},
		Production: Production{
			TimeNs:     in.TimeNs,
			TimestepPs: in.TimestepPs,
			Steps:      deriveSteps(in.TimeNs, in.TimestepPs),
		},
		TemperatureK: in.TemperatureK,
		Bias: BiasConfig{
			HeightKJ:     in.BiasHeight,
			PaceSteps:    in.BiasPace,
			Factor:       in.BiasFactor,
			TemperatureK: in.TemperatureK,
			PrintStride:  in.PrintStride,
			Walkers:      in.Walkers,
			CVs:          cvs,
			Walls:        walls,
			Grid:         grid,
		},
	}
	if cfg.Bias.PrintStride <= 0 {
		cfg.Bias.PrintStride = cfg.Bias.PaceSteps
	}
	if err := cfg.Bias.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildCV(in CVInput) (CVSpec, error) {
	switch in.Kind {
	case CVDistance:
		return NewDistanceCV(in.GroupA, in.GroupB, in.Sigma)
	case CVCoordination:
		return NewCoordinationCV(in.GroupA, in.GroupB, in.R0, in.Sigma)
	case CVTorsion:
		return NewTorsionCV(in.Atoms, in.Sigma)
	case CVRMSD:
		return NewRMSDCV(in.Reference, in.Sigma)
	default:
		return CVSpec{}, services.Wrap(services.ErrConfiguration, "", "cv",
			fmt.Sprintf("unknown CV kind %q (valid: distance, rmsd, torsion, coordination)", in.Kind), nil)
	}
}

// wallsForCV turns the per-CV thresholds into wall specs. A zero threshold
// means "no wall", never a wall at position zero.
func wallsForCV(index int, in CVInput) []WallSpec {
	var walls []WallSpec
	if in.LowerWallAt != 0 {
		walls = append(walls, WallSpec{CV: index, Bound: WallLower, At: in.LowerWallAt, Kappa: defaultKappa(in.LowerWallKappa)})
	}
	if in.UpperWallAt != 0 {
		walls = append(walls, WallSpec{CV: index, Bound: WallUpper, At: in.UpperWallAt, Kappa: defaultKappa(in.UpperWallKappa)})
	}
	return walls
}

func defaultKappa(kappa float64) float64 {
	if kappa <= 0 {
		return DefaultWallKappa
	}
	return kappa
}

func deriveSteps(timeNs, timestepPs float64) int64 {
	return int64(math.Round(timeNs * 1000 / timestepPs))
}
