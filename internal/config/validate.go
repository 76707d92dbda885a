package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		problems = append(problems, "paths.runs_dir must be set")
	}
	if strings.TrimSpace(c.Engine.GmxBinary) == "" {
		problems = append(problems, "engine.gmx_binary must be set")
	}
	if strings.TrimSpace(c.Engine.PythonBinary) == "" {
		problems = append(problems, "engine.python_binary must be set")
	}
	if c.Defaults.TimestepPs <= 0 {
		problems = append(problems, fmt.Sprintf("defaults.timestep_ps must be positive, got %g", c.Defaults.TimestepPs))
	}
	if c.Defaults.TemperatureK <= 0 {
		problems = append(problems, fmt.Sprintf("defaults.temperature_k must be positive, got %g", c.Defaults.TemperatureK))
	}
	if c.Defaults.BiasFactor <= 1 {
		problems = append(problems, fmt.Sprintf("defaults.bias_factor must exceed 1, got %g", c.Defaults.BiasFactor))
	}
	if c.Defaults.BiasPace <= 0 {
		problems = append(problems, fmt.Sprintf("defaults.bias_pace must be positive, got %d", c.Defaults.BiasPace))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
