package runconfig_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"metad/internal/runconfig"
	"metad/internal/services"
)

func fullCapture() runconfig.CaptureInput {
	in := baseCapture()
	in.Ligand = "LIG"
	in.ForceFieldOrigin = runconfig.ForceFieldBundled
	in.Walkers = 4
	in.CVs = []runconfig.CVInput{
		{Kind: runconfig.CVDistance, GroupA: "1-50", GroupB: "100-150", Sigma: 0.3, UpperWallAt: 4.0, UpperWallKappa: 200},
		{Kind: runconfig.CVTorsion, Atoms: [4]int{5, 7, 9, 15}, Sigma: 0.35},
		{Kind: runconfig.CVCoordination, GroupA: "1,2,3", GroupB: "10,11,12", R0: 0.45, Sigma: 0.2},
		{Kind: runconfig.CVRMSD, Reference: "reference.pdb", Sigma: 0.1, LowerWallAt: 0.05},
	}
	in.GridMin = []float64{0, -3.14, 0, 0}
	in.GridMax = []float64{5, 3.14, 20, 2}
	in.GridBins = []int{200, 180, 100, 80}
	return in
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg, err := runconfig.New(fullCapture())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), runconfig.RecordName)
	if err := runconfig.Save(cfg, path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := runconfig.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Fatalf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", cfg, loaded)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	cfg, err := runconfig.New(fullCapture())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	dir := t.TempDir()
	first := filepath.Join(dir, "a.conf")
	second := filepath.Join(dir, "b.conf")
	if err := runconfig.Save(cfg, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := runconfig.Save(cfg, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Fatal("identical configs should serialize to identical bytes")
	}
}

func TestLoadMissingRecordIsConfigurationError(t *testing.T) {
	_, err := runconfig.Load(filepath.Join(t.TempDir(), "absent.conf"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadRejectsMalformedRecords(t *testing.T) {
	cases := map[string]string{
		"not key=value":   "version=1\nprotein\n",
		"missing field":   "version=1\nprotein=p.pdb\n",
		"bad CV arity":    recordWithCV("cv.0.kind=torsion\ncv.0.sigma=0.3\ncv.0.atoms=5,7,9\n"),
		"unknown CV kind": recordWithCV("cv.0.kind=angle\ncv.0.sigma=0.3\n"),
		"bad version":     "version=9\n",
		"bogus forcefield origin": strings.Replace(
			recordWithCV("cv.0.kind=distance\ncv.0.sigma=0.3\ncv.0.groups=1-50;60-80\n"),
			"forcefield.origin=system", "forcefield.origin=downloaded", 1),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.conf")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write record: %v", err)
			}
			if _, err := runconfig.Load(path); !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func recordWithCV(cvLines string) string {
	return `version=1
protein=protein.pdb
ligand=
forcefield.name=amber99sb-ildn
forcefield.origin=system
box.shape=dodecahedron
box.edge_nm=1
water.model=tip3p
ion.molarity=0.15
production.time_ns=100
production.timestep_ps=0.002
production.steps=50000000
temperature_k=300
bias.height=1.2
bias.pace=500
bias.factor=15
bias.print_stride=500
bias.walkers=0
cv.count=1
` + cvLines + "wall.count=0\n"
}
