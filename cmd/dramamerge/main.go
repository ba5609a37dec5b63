package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"dramamerge/internal/services"
)

const (
	exitFailure   = 1
	exitPartial   = 2
	exitCancelled = 130
)

// exitError carries a process exit code alongside the error shown to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process status: 2 when some segments
// merged and others did not, 130 on interrupt, 1 otherwise.
func exitCode(err error) int {
	var coded *exitError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), errors.Is(err, services.ErrCancelled):
		return exitCancelled
	case errors.As(err, &coded):
		return coded.code
	default:
		return exitFailure
	}
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		code := exitCode(err)
		if code != exitCancelled {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
}
