package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// newCommand builds the exec.Cmd for a spawn. When the configuration ties
// the child to the context, cancellation kills the process, giving cleanup
// on every exit path without a global shutdown registry.
func newCommand(ctx context.Context, cfg *Config, path string) *exec.Cmd {
	var cmd *exec.Cmd

	if cfg.TieToContext {
		//nolint:gosec // G204: spawning caller-supplied commands is this module's purpose
		cmd = exec.CommandContext(ctx, path, cfg.Args[1:]...)
	} else {
		//nolint:gosec // G204: spawning caller-supplied commands is this module's purpose
		cmd = exec.Command(path, cfg.Args[1:]...)
	}

	cmd.Dir = cfg.Cwd
	cmd.Env = buildEnvironment(cfg.Env)

	return cmd
}

// buildEnvironment constructs the child's environment: the parent's
// environment plus any caller-provided overrides.
func buildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	for key, value := range extra {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
