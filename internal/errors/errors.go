package errors

import (
	"errors"
	"fmt"
)

// ProcStreamError is the base interface for all errors produced by this module.
type ProcStreamError interface {
	error
	IsProcStreamError() bool
}

// Compile-time verification that all error types implement ProcStreamError.
var (
	_ ProcStreamError = (*ConfigError)(nil)
	_ ProcStreamError = (*CommandNotFoundError)(nil)
	_ ProcStreamError = (*SpawnError)(nil)
	_ ProcStreamError = (*StreamError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrSessionFinished indicates the interaction sequence has reached its
	// terminal state; the exit code is available and no further events will
	// be produced.
	ErrSessionFinished = errors.New("session finished")

	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.New("session closed: sessions are single-use, spawn a new one")

	// ErrStdinClosed indicates the child's stdin has been closed.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrEmptyCommand indicates a spawn was attempted with no command arguments.
	ErrEmptyCommand = errors.New("empty command")
)

// ConfigError indicates malformed session configuration. Configuration is
// validated eagerly at spawn time, never mid-stream.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsProcStreamError implements ProcStreamError.
func (e *ConfigError) IsProcStreamError() bool { return true }

// CommandNotFoundError indicates the command binary could not be resolved.
type CommandNotFoundError struct {
	Command string
	Err     error
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command not found: %s: %v", e.Command, e.Err)
}

func (e *CommandNotFoundError) Unwrap() error {
	return e.Err
}

// IsProcStreamError implements ProcStreamError.
func (e *CommandNotFoundError) IsProcStreamError() bool { return true }

// SpawnError indicates the child process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsProcStreamError implements ProcStreamError.
func (e *SpawnError) IsProcStreamError() bool { return true }

// StreamError indicates an unrecoverable read failure on one of the child's
// output streams. The session is forced to its terminal state with whatever
// output was already buffered.
type StreamError struct {
	Stderr bool
	Err    error
}

func (e *StreamError) Error() string {
	name := "stdout"
	if e.Stderr {
		name = "stderr"
	}

	return fmt.Sprintf("%s read failed: %v", name, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsProcStreamError implements ProcStreamError.
func (e *StreamError) IsProcStreamError() bool { return true }
