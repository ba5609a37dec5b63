package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement describes an external binary the merge pipeline invokes.
// ConfigKey names the setting that overrides Command.
type Requirement struct {
	Name        string
	Command     string
	Description string
	ConfigKey   string
	Optional    bool
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// MediaTools returns the ffmpeg and ffprobe requirements for the given
// configured binaries. Both are mandatory: probing supplies durations for
// planning and ffmpeg performs the concat.
func MediaTools(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Required for concatenating segments",
			ConfigKey:   "media.ffmpeg_binary",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Required for duration and stream inspection",
			ConfigKey:   "media.ffprobe_binary",
		},
	}
}

// CheckBinaries resolves every requirement against PATH (or as a path when
// Command contains a separator).
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, resolve(req))
	}
	return results
}

// Missing returns the unavailable, non-optional statuses.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

// Hint suggests how to fix an unavailable status.
func (s Status) Hint() string {
	if s.Available {
		return ""
	}
	if s.ConfigKey == "" {
		return "install " + strings.ToLower(s.Name)
	}
	return fmt.Sprintf("install %s or set %s", strings.ToLower(s.Name), s.ConfigKey)
}

func resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}
