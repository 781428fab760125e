package procstream

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"

	"github.com/wagiedev/procstream-go/internal/proc"
)

// Process is a handle to a child process spawned without output streaming.
// It exposes the exit-code poll and the best-effort terminate that Start
// returns alongside it.
type Process = proc.Handle

// Call runs a command with the parent's standard streams attached,
// blocking until it exits, and returns its exit code.
func Call(ctx context.Context, args []string, opts ...Option) (int, error) {
	options := applyOptions(opts)

	if err := options.Validate(); err != nil {
		return 0, err
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	handle, err := proc.Spawn(ctx, &proc.Config{
		Args:         args,
		Env:          options.Env,
		Cwd:          options.Cwd,
		TieToContext: options.TerminateOnExit,
		Inherit:      true,
		Logger:       log.With("component", "call"),
	})
	if err != nil {
		return 0, err
	}

	return handle.Wait(ctx)
}

// Output runs a command, blocking until it exits, and returns its exit
// code together with everything it wrote to stdout and stderr.
func Output(ctx context.Context, args []string, opts ...Option) (int, []byte, []byte, error) {
	options := applyOptions(opts)

	if err := options.Validate(); err != nil {
		return 0, nil, nil, err
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	if len(args) == 0 {
		return 0, nil, nil, ErrEmptyCommand
	}

	//nolint:gosec // G204: spawning caller-supplied commands is this module's purpose
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = options.Cwd

	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("Running command for output", "command", args[0])

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			return exitErr.ExitCode(), stdout.Bytes(), stderr.Bytes(), nil
		}

		return 0, nil, nil, err
	}

	return 0, stdout.Bytes(), stderr.Bytes(), nil
}

// Start spawns a command without touching its standard streams and returns
// the process handle together with its terminate action. The action is
// idempotent and best effort: a child that already exited is not an error.
// Use WithTerminateOnExit to tie the child's lifetime to ctx so it is
// cleaned up on every exit path.
func Start(ctx context.Context, args []string, opts ...Option) (*Process, func() error, error) {
	options := applyOptions(opts)

	if err := options.Validate(); err != nil {
		return nil, nil, err
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	handle, err := proc.Spawn(ctx, &proc.Config{
		Args:         args,
		Env:          options.Env,
		Cwd:          options.Cwd,
		TieToContext: options.TerminateOnExit,
		Inherit:      true,
		Logger:       log.With("component", "start"),
	})
	if err != nil {
		return nil, nil, err
	}

	return handle, handle.Terminate, nil
}
