package plumed_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"metad/internal/plumed"
	"metad/internal/runconfig"
)

func twoCVBias(t *testing.T) runconfig.BiasConfig {
	t.Helper()
	dist, err := runconfig.NewDistanceCV("1-50", "100-150", 0.3)
	if err != nil {
		t.Fatalf("distance CV: %v", err)
	}
	tors, err := runconfig.NewTorsionCV([4]int{5, 7, 9, 15}, 0.35)
	if err != nil {
		t.Fatalf("torsion CV: %v", err)
	}
	return runconfig.BiasConfig{
		HeightKJ:     1.2,
		PaceSteps:    500,
		Factor:       15,
		TemperatureK: 300,
		PrintStride:  500,
		CVs:          []runconfig.CVSpec{dist, tors},
	}
}

func TestGenerateFreshTwoCVRun(t *testing.T) {
	out := plumed.Generate(twoCVBias(t))

	var cvDefs, metadLines []string
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "cv1:") || strings.HasPrefix(trimmed, "cv2:") {
			cvDefs = append(cvDefs, trimmed)
		}
		if strings.HasPrefix(trimmed, "metad:") {
			metadLines = append(metadLines, trimmed)
		}
	}

	if len(cvDefs) != 2 {
		t.Fatalf("expected exactly two CV definition lines, got %d:\n%s", len(cvDefs), out)
	}
	if len(metadLines) != 1 {
		t.Fatalf("expected exactly one bias-action line, got %d:\n%s", len(metadLines), out)
	}

	metad := metadLines[0]
	for _, want := range []string{"ARG=cv1,cv2", "SIGMA=0.3,0.35", "HEIGHT=1.2", "PACE=500", "BIASFACTOR=15", "TEMP=300", "FILE=HILLS"} {
		if !strings.Contains(metad, want) {
			t.Fatalf("bias-action line missing %q: %s", want, metad)
		}
	}
	if strings.Contains(out, "RESTART") {
		t.Fatalf("fresh run must not carry a RESTART marker:\n%s", out)
	}
	if strings.Contains(metad, "GRID_") {
		t.Fatalf("no grid was configured, got %s", metad)
	}

	if !strings.Contains(out, "cv2: TORSION ATOMS=5,7,9,15") {
		t.Fatalf("torsion definition missing:\n%s", out)
	}
	if !strings.Contains(out, "cv1_a: COM ATOMS=1-50") || !strings.Contains(out, "cv1: DISTANCE ATOMS=cv1_a,cv1_b NOPBC") {
		t.Fatalf("ranged distance CV should go through COM sites:\n%s", out)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	bias := twoCVBias(t)
	first := plumed.Generate(bias)
	second := plumed.Generate(bias)
	if first != second {
		t.Fatal("equal inputs must produce byte-identical documents")
	}
}

func TestGenerateWallsAndGrid(t *testing.T) {
	bias := twoCVBias(t)
	bias.Walls = []runconfig.WallSpec{{CV: 1, Bound: runconfig.WallUpper, At: 1.5, Kappa: 150}}
	bias.Grid = &runconfig.GridSpec{Min: []float64{0, -3.14}, Max: []float64{5, 3.14}, Bins: []int{200, 180}}

	out := plumed.Generate(bias)
	if !strings.Contains(out, "wall_cv2_upper: UPPER_WALLS ARG=cv2 AT=1.5 KAPPA=150 EXP=2 EPS=1 OFFSET=0") {
		t.Fatalf("wall line missing or malformed:\n%s", out)
	}
	if strings.Contains(out, "LOWER_WALLS") {
		t.Fatalf("no lower wall was configured:\n%s", out)
	}
	for _, want := range []string{"GRID_MIN=0,-3.14", "GRID_MAX=5,3.14", "GRID_BIN=200,180"} {
		if !strings.Contains(out, want) {
			t.Fatalf("grid vectors missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateMultiWalker(t *testing.T) {
	bias := twoCVBias(t)
	bias.Walkers = 4
	out := plumed.Generate(bias)
	for _, want := range []string{"WALKERS_N=4", "WALKERS_DIR=./", "WALKERS_RSTRIDE=500"} {
		if !strings.Contains(out, want) {
			t.Fatalf("multi-walker settings missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateSingleAtomDistanceAndAllVariants(t *testing.T) {
	dist, _ := runconfig.NewDistanceCV("1", "100", 0.3)
	coord, _ := runconfig.NewCoordinationCV("1-10", "20-30", 0.45, 0.2)
	rmsd, _ := runconfig.NewRMSDCV("reference.pdb", 0.1)
	bias := runconfig.BiasConfig{
		HeightKJ: 1.0, PaceSteps: 500, Factor: 10, TemperatureK: 300, PrintStride: 500,
		CVs: []runconfig.CVSpec{dist, coord, rmsd},
	}

	out := plumed.Generate(bias)
	if !strings.Contains(out, "cv1: DISTANCE ATOMS=1,100 NOPBC") {
		t.Fatalf("single-atom distance should skip COM sites:\n%s", out)
	}
	if !strings.Contains(out, "cv2: COORDINATION GROUPA=1-10 GROUPB=20-30 R_0=0.45") {
		t.Fatalf("coordination definition missing:\n%s", out)
	}
	if !strings.Contains(out, "cv3: RMSD REFERENCE=reference.pdb TYPE=OPTIMAL") {
		t.Fatalf("rmsd definition missing:\n%s", out)
	}
	if !strings.Contains(out, "PRINT ARG=cv1,cv2,cv3,metad.bias STRIDE=500 FILE=COLVAR") {
		t.Fatalf("print block missing:\n%s", out)
	}
	if !strings.Contains(out, "FLUSH STRIDE=5000") {
		t.Fatalf("flush block missing:\n%s", out)
	}
}

func TestContinuationDetectionAndMarking(t *testing.T) {
	dir := t.TempDir()

	if plumed.IsContinuation(dir) {
		t.Fatal("empty directory is not a continuation")
	}

	hills := filepath.Join(dir, plumed.HillsName)
	cpt := filepath.Join(dir, plumed.CheckpointName)
	if err := os.WriteFile(hills, nil, 0o644); err != nil {
		t.Fatalf("write hills: %v", err)
	}
	if err := os.WriteFile(cpt, []byte("cpt"), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	if plumed.IsContinuation(dir) {
		t.Fatal("empty bias history must not count as a continuation")
	}

	if err := os.WriteFile(hills, []byte("0.0 1.5 0.3 1.2 15\n"), 0o644); err != nil {
		t.Fatalf("fill hills: %v", err)
	}
	if !plumed.IsContinuation(dir) {
		t.Fatal("non-empty bias history plus checkpoint should be a continuation")
	}

	directive := filepath.Join(dir, plumed.DirectiveName)
	if err := plumed.WriteFile(twoCVBias(t), directive); err != nil {
		t.Fatalf("write directive: %v", err)
	}
	if err := plumed.MarkContinuation(directive); err != nil {
		t.Fatalf("first MarkContinuation: %v", err)
	}
	if err := plumed.MarkContinuation(directive); err != nil {
		t.Fatalf("second MarkContinuation: %v", err)
	}

	data, err := os.ReadFile(directive)
	if err != nil {
		t.Fatalf("read directive: %v", err)
	}
	content := string(data)
	if got := strings.Count(content, "RESTART"); got != 1 {
		t.Fatalf("expected exactly one RESTART marker, got %d:\n%s", got, content)
	}
	if !strings.HasPrefix(content, "RESTART\n") {
		t.Fatalf("RESTART must be the first line:\n%s", content)
	}
}
