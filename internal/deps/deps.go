package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"metad/internal/config"
	"metad/internal/gromacs"
	"metad/internal/services"
)

// Requirement defines an external dependency the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external tools the configured pipeline will invoke.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Simulation engine",
			Command:     cfg.Engine.GmxBinary,
			Description: "Builds, equilibrates, and runs the system",
		},
		{
			Name:        "Python interpreter",
			Command:     cfg.Engine.PythonBinary,
			Description: "Runs the convergence and plotting scripts",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckBiasSupport verifies the engine build was patched for bias directives
// by looking for the -plumed flag in the mdrun usage text. An engine that is
// installed but unpatched would silently run unbiased dynamics.
func CheckBiasSupport(ctx context.Context, client *gromacs.Client) Status {
	status := Status{
		Name:        "Bias support",
		Command:     client.Binary(),
		Description: "Engine accepts a bias directive file",
	}
	help, err := client.MdrunHelp(ctx)
	if err != nil {
		status.Detail = fmt.Sprintf("mdrun usage check failed: %v", err)
		return status
	}
	if !strings.Contains(help, "-plumed") {
		status.Detail = "engine build does not accept -plumed (unpatched)"
		return status
	}
	status.Available = true
	return status
}

// Verify turns any missing required dependency into a fatal error. It is
// called once before the first stage runs.
func Verify(statuses []Status) error {
	var missing []string
	for _, status := range statuses {
		if status.Available || status.Optional {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrMissingDependency, "", "preflight", strings.Join(missing, "; "), nil)
}
