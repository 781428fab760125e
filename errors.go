package procstream

import "github.com/wagiedev/procstream-go/internal/errors"

// Re-export error types from the internal package.

// ConfigError indicates malformed session configuration, rejected eagerly
// at spawn time.
type ConfigError = errors.ConfigError

// CommandNotFoundError indicates the command binary could not be resolved.
type CommandNotFoundError = errors.CommandNotFoundError

// SpawnError indicates the child process could not be started.
type SpawnError = errors.SpawnError

// StreamError indicates an unrecoverable read failure on one of the
// child's output streams.
type StreamError = errors.StreamError

// ProcStreamError is the base interface for all errors produced by this module.
type ProcStreamError = errors.ProcStreamError

// Re-export sentinel errors from the internal package.
var (
	// ErrSessionFinished indicates the interaction sequence has completed;
	// the exit code is available via Session.ExitCode.
	ErrSessionFinished = errors.ErrSessionFinished

	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrStdinClosed indicates the child's stdin has been closed.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrEmptyCommand indicates a spawn was attempted with no command arguments.
	ErrEmptyCommand = errors.ErrEmptyCommand
)
