package gromacs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"metad/internal/config"
	"metad/internal/logging"
	"metad/internal/runconfig"
	"metad/internal/services"
)

func stubEngine(t *testing.T, mode string, captured *[][]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append(*captured, append([]string(nil), args...))
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "GMX_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func testClient(extra ...string) *Client {
	return New(config.Engine{GmxBinary: "gmx", MdrunExtra: extra}, logging.NewNop())
}

func TestMdrunArguments(t *testing.T) {
	var captured [][]string
	stubEngine(t, "success", &captured)

	client := New(config.Engine{GmxBinary: "gmx", GpuAccelerate: true, MdrunExtra: []string{"-ntomp", "8"}}, logging.NewNop())
	if err := client.Mdrun(context.Background(), t.TempDir(), "md", "plumed.dat"); err != nil {
		t.Fatalf("Mdrun returned error: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("expected one engine invocation, got %d", len(captured))
	}
	args := captured[0]
	joined := strings.Join(args, " ")
	for _, want := range []string{"mdrun", "-deffnm md", "-plumed plumed.dat", "-nb gpu", "-ntomp 8"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected mdrun args to contain %q, got %v", want, args)
		}
	}
}

func TestMdrunOmitsBiasFlagWhenUnset(t *testing.T) {
	var captured [][]string
	stubEngine(t, "success", &captured)

	if err := testClient().Mdrun(context.Background(), t.TempDir(), "nvt", ""); err != nil {
		t.Fatalf("Mdrun returned error: %v", err)
	}
	if idx := findArg(captured[0], "-plumed"); idx != -1 {
		t.Fatalf("expected no -plumed flag, got %v", captured[0])
	}
}

func TestPdb2gmxArguments(t *testing.T) {
	var captured [][]string
	stubEngine(t, "success", &captured)

	if err := testClient().Pdb2gmx(context.Background(), t.TempDir(), "protein.pdb", "amber99sb-ildn", "tip3p"); err != nil {
		t.Fatalf("Pdb2gmx returned error: %v", err)
	}
	args := captured[0]
	idx := findArg(args, "-ff")
	if idx == -1 || args[idx+1] != "amber99sb-ildn" {
		t.Fatalf("expected force field flag, got %v", args)
	}
	idx = findArg(args, "-water")
	if idx == -1 || args[idx+1] != "tip3p" {
		t.Fatalf("expected water model flag, got %v", args)
	}
}

func TestGenionSelectsSolventOnStdin(t *testing.T) {
	stubEngine(t, "echo-stdin", nil)

	if err := testClient().Genion(context.Background(), t.TempDir(), 0.15); err != nil {
		t.Fatalf("Genion returned error: %v", err)
	}
}

func TestRunFailureWrapsExternalTool(t *testing.T) {
	stubEngine(t, "failure", nil)

	err := testClient().Grompp(context.Background(), t.TempDir(), "minim.mdp", "solv_ions.gro", "em.tpr")
	if err == nil {
		t.Fatal("expected error from failing engine")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	stubEngine(t, "success", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := testClient().MakeNdx(ctx, t.TempDir()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestWriteParameterFiles(t *testing.T) {
	dir := t.TempDir()
	rc := &runconfig.RunConfig{
		Production: runconfig.Production{TimeNs: 100, TimestepPs: 0.002, Steps: 50000000},
	}
	rc.Bias.TemperatureK = 310

	if err := WriteParameterFiles(dir, rc); err != nil {
		t.Fatalf("WriteParameterFiles returned error: %v", err)
	}

	for _, name := range []string{IonsMDP, MinimMDP, NvtMDP, NptMDP, ProductionMDP} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}

	body, err := os.ReadFile(filepath.Join(dir, ProductionMDP))
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)
	for _, want := range []string{"nsteps      = 50000000", "dt          = 0.002", "ref_t       = 310 310"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected production parameters to contain %q, got:\n%s", want, text)
		}
	}

	nvt, err := os.ReadFile(filepath.Join(dir, NvtMDP))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(nvt), "gen_temp    = 310") {
		t.Fatalf("expected velocity generation at run temperature, got:\n%s", nvt)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("GMX_HELPER_MODE") {
	case "success":
		fmt.Println("GROMACS reminds you: simulation complete")
		os.Exit(0)
	case "echo-stdin":
		buf := make([]byte, 64)
		n, _ := os.Stdin.Read(buf)
		fmt.Printf("selected %s\n", strings.TrimSpace(string(buf[:n])))
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Fatal error: number of coordinates does not match topology")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
