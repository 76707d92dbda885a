package analysis

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

func stubInterpreter(t *testing.T, mode string, captured *[][]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append(*captured, append([]string(nil), args...))
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "ANALYSIS_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func testRunner() *Runner {
	return NewRunner(config.Engine{PythonBinary: "python3", ScriptDir: "/opt/metad/scripts"}, logging.NewNop())
}

func TestConvergenceArguments(t *testing.T) {
	var captured [][]string
	stubInterpreter(t, "success", &captured)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "COLVAR"), []byte("0.0 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	bias := runconfig.BiasConfig{TemperatureK: 310, Factor: 15}
	if err := testRunner().Convergence(context.Background(), dir, bias); err != nil {
		t.Fatalf("Convergence returned error: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("expected one invocation, got %d", len(captured))
	}
	joined := strings.Join(captured[0], " ")
	for _, want := range []string{
		filepath.Join("/opt/metad/scripts", ConvergenceScript),
		"--hills HILLS",
		"--temp 310",
		"--biasfactor 15",
		"--colvar COLVAR",
		"--output-dir analysis",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected args to contain %q, got %v", want, captured[0])
		}
	}
}

func TestConvergenceOmitsMissingColvar(t *testing.T) {
	var captured [][]string
	stubInterpreter(t, "success", &captured)

	bias := runconfig.BiasConfig{TemperatureK: 300, Factor: 10}
	if err := testRunner().Convergence(context.Background(), t.TempDir(), bias); err != nil {
		t.Fatalf("Convergence returned error: %v", err)
	}
	if strings.Contains(strings.Join(captured[0], " "), "--colvar") {
		t.Fatalf("expected no --colvar flag without a COLVAR file, got %v", captured[0])
	}
}

func TestPlotsPassAnalysisOutputsWhenPresent(t *testing.T) {
	var captured [][]string
	stubInterpreter(t, "success", &captured)

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, AnalysisDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, AnalysisDir, "fes.dat"), []byte("0 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := testRunner().Plots(context.Background(), dir); err != nil {
		t.Fatalf("Plots returned error: %v", err)
	}
	joined := strings.Join(captured[0], " ")
	if !strings.Contains(joined, "--fes "+filepath.Join(AnalysisDir, "fes.dat")) {
		t.Fatalf("expected --fes flag, got %v", captured[0])
	}
	if strings.Contains(joined, "--deltaG") {
		t.Fatalf("expected no --deltaG flag without the data file, got %v", captured[0])
	}
}

func TestRunFailureWrapsExternalTool(t *testing.T) {
	stubInterpreter(t, "failure", nil)

	err := testRunner().Plots(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error from failing script")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestLoadTableSkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HILLS")
	body := `#! FIELDS time cv1 sigma_cv1 height biasf
@ some legacy header
0.0 1.2 0.05 1.2 15
500.0 1.3 0.05 1.1 15

1000.0 1.4 0.05 1.0 15
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d", len(rows))
	}
	if rows[1][1] != 1.3 {
		t.Fatalf("expected second row cv value 1.3, got %v", rows[1][1])
	}
}

func TestLoadTableRejectsRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "COLVAR")
	if err := os.WriteFile(path, []byte("0.0 1.0 2.0\n500.0 1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Fatal("expected error for ragged table")
	}
}

func TestLoadTableRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "COLVAR")
	if err := os.WriteFile(path, []byte("# only a header\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Fatal("expected error for table without data rows")
	}
}

func TestLoadTableRejectsNonNumericValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "COLVAR")
	if err := os.WriteFile(path, []byte("0.0 abc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("ANALYSIS_HELPER_MODE") {
	case "success":
		fmt.Println("analysis complete")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "ERROR: no data found")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
