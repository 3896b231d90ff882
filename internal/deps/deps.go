package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary songflow shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved on this host.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// CheckBinaries resolves every requirement against PATH (or as a direct path).
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Path = path
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}
