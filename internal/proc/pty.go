package proc

import (
	"context"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/metrics"
)

// SpawnPTY starts the child attached to a pseudo-terminal instead of pipes.
// Stdout and stderr are inherently combined through the terminal, and
// interactive children see a tty on all three streams. Stdin writes go to
// the same pty master.
//
// When the parent's stdout is itself a terminal, the pty is sized to match
// it so full-screen children render sensibly.
func SpawnPTY(ctx context.Context, cfg *Config) (*Handle, error) {
	if len(cfg.Args) == 0 {
		return nil, errors.ErrEmptyCommand
	}

	path, err := exec.LookPath(cfg.Args[0])
	if err != nil {
		cfg.Logger.Error("Failed to resolve command", "command", cfg.Args[0], "error", err)

		return nil, &errors.CommandNotFoundError{Command: cfg.Args[0], Err: err}
	}

	cmd := newCommand(ctx, cfg, path)

	master, err := pty.Start(cmd)
	if err != nil {
		cfg.Logger.Error("Failed to start child on pty", "command", cfg.Args[0], "error", err)

		return nil, &errors.SpawnError{Command: cfg.Args[0], Err: err}
	}

	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if cols, rows, sizeErr := term.GetSize(fd); sizeErr == nil {
			_ = pty.Setsize(master, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
		}
	}

	h := &Handle{
		log:    cfg.Logger,
		cmd:    cmd,
		stdin:  master,
		stdout: master,
		isPTY:  true,
		done:   make(chan struct{}),
	}

	go h.collectExit()

	metrics.ProcessSpawned()
	cfg.Logger.Info("Child process started on pty", "command", cfg.Args[0], "pid", cmd.Process.Pid)

	return h, nil
}
