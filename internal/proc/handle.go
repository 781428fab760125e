package proc

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/metrics"
)

// Handle owns one spawned child process: its stdin write end, its output
// pipe read ends, a non-blocking poll for the exit code, and a best-effort
// idempotent terminate.
//
// The pipes are created with os.Pipe and the child-side ends are closed in
// the parent right after spawn, so the exit-code collector can run
// concurrently with pipe reads without the runtime closing the read ends
// underneath a reader.
type Handle struct {
	log *slog.Logger
	cmd *exec.Cmd

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	mu          sync.Mutex // protects stdin writes and the closed flag
	stdinClosed bool
	isPTY       bool

	done     chan struct{}
	exitCode int

	termOnce sync.Once
	termErr  error
}

// Config holds the process-level part of the session configuration.
type Config struct {
	// Args is the command line; Args[0] is resolved against PATH.
	Args []string

	// Env provides additional environment variables, appended to the
	// parent's environment.
	Env map[string]string

	// Cwd is the child's working directory. Empty means inherit.
	Cwd string

	// TieToContext kills the child when the spawn context is cancelled.
	TieToContext bool

	// Combined redirects stderr into the stdout pipe. Stderr() returns nil.
	Combined bool

	// Inherit attaches the child to the parent's standard streams instead
	// of pipes. Stdout(), Stderr() return nil and Write fails.
	Inherit bool

	// Logger receives spawn and lifecycle events. Must not be nil.
	Logger *slog.Logger
}

// Spawn starts the child process with pipes on stdin, stdout and stderr.
func Spawn(ctx context.Context, cfg *Config) (*Handle, error) {
	if len(cfg.Args) == 0 {
		return nil, errors.ErrEmptyCommand
	}

	path, err := exec.LookPath(cfg.Args[0])
	if err != nil {
		cfg.Logger.Error("Failed to resolve command", "command", cfg.Args[0], "error", err)

		return nil, &errors.CommandNotFoundError{Command: cfg.Args[0], Err: err}
	}

	cmd := newCommand(ctx, cfg, path)

	if cfg.Inherit {
		return spawnInherit(cfg, cmd)
	}

	// Parent-owned pipes: the child ends are closed right after Start so
	// EOF on the read ends tracks the child's lifetime, and Wait never
	// touches them.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, &errors.SpawnError{Command: cfg.Args[0], Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW)

		return nil, &errors.SpawnError{Command: cfg.Args[0], Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	var stderrR, stderrW *os.File

	if cfg.Combined {
		stderrW = stdoutW
	} else {
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			closeAll(stdinR, stdinW, stdoutR, stdoutW)

			return nil, &errors.SpawnError{Command: cfg.Args[0], Err: fmt.Errorf("stderr pipe: %w", err)}
		}
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)

		if !cfg.Combined {
			closeAll(stderrR, stderrW)
		}

		cfg.Logger.Error("Failed to start child process", "command", cfg.Args[0], "error", err)

		return nil, &errors.SpawnError{Command: cfg.Args[0], Err: err}
	}

	// Close the child-side ends in the parent; the child holds its own copies.
	closeAll(stdinR, stdoutW)

	if !cfg.Combined {
		_ = stderrW.Close()
	}

	h := &Handle{
		log:    cfg.Logger,
		cmd:    cmd,
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
	}

	go h.collectExit()

	metrics.ProcessSpawned()
	cfg.Logger.Info("Child process started", "command", cfg.Args[0], "pid", cmd.Process.Pid)

	return h, nil
}

// spawnInherit starts the child on the parent's standard streams.
func spawnInherit(cfg *Config, cmd *exec.Cmd) (*Handle, error) {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cfg.Logger.Error("Failed to start child process", "command", cfg.Args[0], "error", err)

		return nil, &errors.SpawnError{Command: cfg.Args[0], Err: err}
	}

	h := &Handle{
		log:         cfg.Logger,
		cmd:         cmd,
		stdinClosed: true,
		done:        make(chan struct{}),
	}

	go h.collectExit()

	metrics.ProcessSpawned()
	cfg.Logger.Info("Child process started", "command", cfg.Args[0], "pid", cmd.Process.Pid)

	return h, nil
}

// collectExit waits for the child and records its exit code exactly once.
func (h *Handle) collectExit() {
	err := h.cmd.Wait()

	code := 0

	if err != nil {
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			code = exitErr.ExitCode()
		} else {
			// Wait itself failed; treat as an abnormal exit.
			code = -1
		}
	}

	h.exitCode = code
	close(h.done)

	h.log.Debug("Child process exited", "pid", h.cmd.Process.Pid, "exit_code", code)
}

// Poll returns the child's exit code without blocking. The second return is
// false until the child has actually exited; once true, the code never
// changes again.
func (h *Handle) Poll() (int, bool) {
	select {
	case <-h.done:
		return h.exitCode, true
	default:
		return 0, false
	}
}

// Wait blocks until the child exits or the context is cancelled.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		return h.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Exited returns a channel closed when the child's exit code is available.
func (h *Handle) Exited() <-chan struct{} {
	return h.done
}

// Write injects bytes into the child's stdin. A nil or empty payload is a
// no-op. Safe for concurrent use.
func (h *Handle) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stdinClosed {
		return errors.ErrStdinClosed
	}

	if _, err := h.stdin.Write(p); err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}

	return nil
}

// CloseStdin signals EOF to the child. Safe to call more than once.
// On a pty there is no half-close; the call is a no-op there.
func (h *Handle) CloseStdin() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stdinClosed {
		return nil
	}

	h.stdinClosed = true

	if h.isPTY {
		return nil
	}

	return h.stdin.Close()
}

// Stdout returns the read end of the child's stdout pipe.
func (h *Handle) Stdout() *os.File {
	return h.stdout
}

// Stderr returns the read end of the child's stderr pipe, or nil when the
// handle was spawned with combined output.
func (h *Handle) Stderr() *os.File {
	return h.stderr
}

// PID returns the child's process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Terminate sends SIGTERM to the child. Termination is best effort: a child
// that already exited is not an error. Subsequent calls are no-ops with the
// same result as the first.
func (h *Handle) Terminate() error {
	h.termOnce.Do(func() {
		h.log.Debug("Terminating child process", "pid", h.cmd.Process.Pid)
		metrics.ProcessTerminated()

		err := h.cmd.Process.Signal(syscall.SIGTERM)
		if err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			h.termErr = fmt.Errorf("terminate pid %d: %w", h.cmd.Process.Pid, err)
		}
	})

	return h.termErr
}

// Kill forcibly kills the child with SIGKILL, for children that ignore the
// polite Terminate. Best effort like Terminate: an already-exited child is
// not an error.
func (h *Handle) Kill() error {
	h.log.Debug("Killing child process", "pid", h.cmd.Process.Pid)

	err := h.cmd.Process.Kill()
	if err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", h.cmd.Process.Pid, err)
	}

	return nil
}

// Close releases the handle's resources: stdin is closed and the output
// pipe read ends are closed. The child is not signalled; use Terminate.
func (h *Handle) Close() error {
	if h.isPTY {
		h.mu.Lock()
		h.stdinClosed = true
		h.mu.Unlock()

		// Master and stdin are the same file on a pty.
		return h.stdout.Close()
	}

	err := h.CloseStdin()

	if h.stdout != nil {
		_ = h.stdout.Close()
	}

	if h.stderr != nil {
		_ = h.stderr.Close()
	}

	return err
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
