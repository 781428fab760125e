// Package errors defines the typed errors and sentinel errors used across
// the module.
//
// Error types carry structured context about the failure:
//
//   - ConfigError: malformed session configuration, rejected at spawn time
//   - CommandNotFoundError: the command binary could not be resolved
//   - SpawnError: the child process failed to start
//   - StreamError: an unrecoverable read failure on an output stream
//
// All typed errors implement the ProcStreamError interface, and wrapping
// errors implement Unwrap for use with errors.Is and errors.As.
package errors
