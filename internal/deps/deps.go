package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"photokiosk/internal/config"
)

// Requirement defines an external binary photokiosk can use.
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

// Requirements lists the external binaries referenced by cfg.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil || !cfg.Acquire.ConvertImages {
		return nil
	}
	return []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.Acquire.FFmpegBinary,
		Description: "Converts HEIC/HEIF/AVIF photos to JPEG",
		Optional:    true,
	}}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Resolve(req.Command)
		status.Name = req.Name
		status.Description = strings.TrimSpace(req.Description)
		status.Optional = req.Optional
		results = append(results, status)
	}
	return results
}

// Resolve locates command on PATH (or verifies it when it is a path) and
// records the resolved location in Status.Command.
func Resolve(command string) Status {
	cmd := strings.TrimSpace(command)
	status := Status{Command: cmd}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}
