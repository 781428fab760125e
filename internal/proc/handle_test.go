package proc

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/procstream-go/internal/errors"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func spawnShell(t *testing.T, script string, mutate func(*Config)) *Handle {
	t.Helper()

	cfg := &Config{
		Args:   []string{"sh", "-c", script},
		Logger: nopLogger(),
	}

	if mutate != nil {
		mutate(cfg)
	}

	h, err := Spawn(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = h.Terminate()
		_ = h.Close()
	})

	return h
}

func TestSpawnReadsChildOutput(t *testing.T) {
	h := spawnShell(t, "echo hi", nil)

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(out))

	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestSpawnReportsExitCode(t *testing.T) {
	h := spawnShell(t, "exit 3", nil)

	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestSpawnCommandNotFound(t *testing.T) {
	_, err := Spawn(context.Background(), &Config{
		Args:   []string{"definitely-not-a-real-command-xyz"},
		Logger: nopLogger(),
	})
	require.Error(t, err)

	var notFound *errors.CommandNotFoundError

	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "definitely-not-a-real-command-xyz", notFound.Command)
}

func TestSpawnEmptyCommand(t *testing.T) {
	_, err := Spawn(context.Background(), &Config{Logger: nopLogger()})
	require.ErrorIs(t, err, errors.ErrEmptyCommand)
}

func TestWriteAndCloseStdin(t *testing.T) {
	h := spawnShell(t, "cat", nil)

	require.NoError(t, h.Write([]byte("hello\n")))
	require.NoError(t, h.CloseStdin())

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// Stdin is gone; further writes fail with the sentinel.
	require.ErrorIs(t, h.Write([]byte("late\n")), errors.ErrStdinClosed)

	// CloseStdin stays a no-op afterwards.
	require.NoError(t, h.CloseStdin())
}

func TestWriteEmptyPayloadIsNoOp(t *testing.T) {
	h := spawnShell(t, "cat", nil)

	require.NoError(t, h.Write(nil))
	require.NoError(t, h.CloseStdin())

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPollDoesNotBlock(t *testing.T) {
	h := spawnShell(t, "sleep 30", nil)

	_, exited := h.Poll()
	assert.False(t, exited)

	require.NoError(t, h.Terminate())

	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, code, "SIGTERM exit has no ordinary code")

	code, exited = h.Poll()
	assert.True(t, exited)
	assert.Equal(t, -1, code)
}

func TestTerminateIdempotent(t *testing.T) {
	h := spawnShell(t, "sleep 30", nil)

	require.NoError(t, h.Terminate())
	require.NoError(t, h.Terminate())

	_, err := h.Wait(context.Background())
	require.NoError(t, err)

	// Terminating an already-exited child is still fine.
	require.NoError(t, h.Terminate())
}

func TestKillStopsChild(t *testing.T) {
	h := spawnShell(t, "sleep 30", nil)

	require.NoError(t, h.Kill())

	code, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, code)

	// Killing an already-exited child is still fine.
	require.NoError(t, h.Kill())
}

func TestWaitHonoursContext(t *testing.T) {
	h := spawnShell(t, "sleep 30", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCombinedMergesStderrIntoStdout(t *testing.T) {
	h := spawnShell(t, "echo out; echo err >&2", func(cfg *Config) {
		cfg.Combined = true
	})

	assert.Nil(t, h.Stderr())

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\n", string(out))
}

func TestSpawnAppliesEnvAndCwd(t *testing.T) {
	h := spawnShell(t, "printf '%s\\n' \"$PROCSTREAM_TEST_VAR\"; pwd", func(cfg *Config) {
		cfg.Env = map[string]string{"PROCSTREAM_TEST_VAR": "marker"}
		cfg.Cwd = "/tmp"
	})

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "marker\n/tmp\n", string(out))
}

func TestTieToContextKillsChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &Config{
		Args:         []string{"sh", "-c", "sleep 30"},
		TieToContext: true,
		Logger:       nopLogger(),
	}

	h, err := Spawn(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = h.Close() })

	cancel()

	select {
	case <-h.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("child survived context cancellation")
	}
}
