package merge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes an external command and returns an error that
// includes diagnostic output when the command fails.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// stderrTailLines bounds the diagnostic output carried in errors.
const stderrTailLines = 12

// killGrace is how long a cancelled process may take to exit before its
// pipes are forcibly closed.
const killGrace = 5 * time.Second

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace
	if err := cmd.Run(); err != nil {
		if tail := tailLines(stderr.String(), stderrTailLines); tail != "" {
			return fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	return nil
}

func tailLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
