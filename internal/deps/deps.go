// Package deps reports whether the external tools a job needs are installed.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"interact/internal/config"
)

// Requirement is one external tool.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// File marks requirements that are a file path (a jar, a data file)
	// rather than an executable looked up on PATH.
	File bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools jobs call for cfg. Tools only needed by some
// runs are optional.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "inSPIRE", Command: cfg.Pipeline.InspireBinary, Description: "runs every pipeline stage"},
		{Name: "interact", Command: cfg.Pipeline.InteractBinary, Description: "queue bookkeeping called from job scripts"},
		{Name: "bash", Command: "bash", Description: "runs job scripts"},
		{Name: "MSFragger", Command: cfg.Pipeline.FraggerPath, Description: "database search for fragger runs", Optional: true, File: true},
		{Name: "NetMHCpan", Command: cfg.Pipeline.NetMHCpan, Description: "binding affinity prediction", Optional: true},
	}
}

// Check evaluates requirements in order.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "not configured"
		case req.File:
			if info, err := os.Stat(cmd); err != nil || info.IsDir() {
				status.Detail = fmt.Sprintf("file %q not found", cmd)
			} else {
				status.Available = true
			}
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required entries of statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
