package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"metad/internal/config"
	"metad/internal/gromacs"
	"metad/internal/logging"
	"metad/internal/services"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Unset"}})
	if results[0].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
}

func TestCheckBiasSupport(t *testing.T) {
	binDir := t.TempDir()
	cases := []struct {
		name   string
		script string
		want   bool
	}{
		{
			name:   "patched",
			script: "#!/bin/sh\necho 'Options: -plumed <.dat> plumed input file'\nexit 0\n",
			want:   true,
		},
		{
			name:   "unpatched",
			script: "#!/bin/sh\necho 'Options: -deffnm -nsteps'\nexit 0\n",
			want:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			binary := filepath.Join(binDir, "gmx-"+tc.name)
			if err := os.WriteFile(binary, []byte(tc.script), 0o755); err != nil {
				t.Fatal(err)
			}
			client := gromacs.New(config.Engine{GmxBinary: binary}, logging.NewNop())
			status := CheckBiasSupport(context.Background(), client)
			if status.Available != tc.want {
				t.Fatalf("expected available=%v, got %#v", tc.want, status)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	err := Verify([]Status{
		{Name: "Engine", Available: true},
		{Name: "Interpreter", Available: false, Detail: `binary "python3" not found`},
		{Name: "Extras", Available: false, Optional: true, Detail: "skipped"},
	})
	if err == nil {
		t.Fatal("expected error for missing required dependency")
	}
	if !errors.Is(err, services.ErrMissingDependency) {
		t.Fatalf("expected missing dependency marker, got %v", err)
	}

	if err := Verify([]Status{{Name: "Engine", Available: true}}); err != nil {
		t.Fatalf("expected nil error when everything is available, got %v", err)
	}
}
