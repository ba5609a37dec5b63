package deps

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds a `-version` invocation.
const versionTimeout = 5 * time.Second

// ToolVersion runs `<command> -version` and returns the first output line,
// e.g. "ffmpeg version 7.1 Copyright ...". ffmpeg and ffprobe both support it.
func ToolVersion(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("command not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, command, "-version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s -version: %w", command, err)
	}
	scanner := bufio.NewScanner(&stdout)
	if scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s -version: empty output", command)
}

// DescribeVersions fills Detail for available statuses with the tool's
// version line. Failures are recorded in Detail and mark the status
// unavailable, since a binary that cannot report its version is unusable.
func DescribeVersions(ctx context.Context, statuses []Status) []Status {
	out := make([]Status, len(statuses))
	for i, status := range statuses {
		if status.Available {
			version, err := ToolVersion(ctx, status.Command)
			if err != nil {
				status.Available = false
				status.Detail = err.Error()
			} else {
				status.Detail = version
			}
		}
		out[i] = status
	}
	return out
}
