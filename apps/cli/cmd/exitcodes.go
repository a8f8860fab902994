package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for the hitwire CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitRequestFailure indicates a response with an error status under --fail
	ExitRequestFailure = 1

	// ExitParseError indicates a routes or body file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func usageErrorf(format string, args ...any) error {
	return withExitCode(ExitUsageError, fmt.Errorf(format, args...))
}

// exitCode maps a command error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitRequestFailure
}
