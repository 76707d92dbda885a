package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"metad/internal/config"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_DATA_HOME", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Engine.GmxBinary != "gmx" {
		t.Fatalf("unexpected gmx binary: %q", cfg.Engine.GmxBinary)
	}
	wantRuns := filepath.Join(tempHome, ".local", "share", "metad", "runs")
	if cfg.Paths.RunsDir != wantRuns {
		t.Fatalf("unexpected runs dir: got %q want %q", cfg.Paths.RunsDir, wantRuns)
	}
	if cfg.Defaults.BiasFactor != 15 {
		t.Fatalf("unexpected bias factor default: %g", cfg.Defaults.BiasFactor)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging format: %q", cfg.Logging.Format)
	}
}

func TestLoadParsesOverridesAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
runs_dir = "~/metad-runs"

[engine]
gmx_binary = " gmx_mpi "
mdrun_extra_args = ["-ntomp", "8"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Paths.RunsDir != filepath.Join(tempHome, "metad-runs") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.RunsDir)
	}
	if cfg.Engine.GmxBinary != "gmx_mpi" {
		t.Fatalf("expected trimmed binary, got %q", cfg.Engine.GmxBinary)
	}
	if len(cfg.Engine.MdrunExtra) != 2 || cfg.Engine.MdrunExtra[0] != "-ntomp" {
		t.Fatalf("unexpected mdrun extras: %v", cfg.Engine.MdrunExtra)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.BiasFactor = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bias factor <= 1")
	}

	cfg = config.Default()
	cfg.Engine.GmxBinary = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty gmx binary")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load of sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}
