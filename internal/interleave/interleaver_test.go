package interleave

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/proc"
	"github.com/wagiedev/procstream-go/internal/stream"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startShell(t *testing.T, script string) (*proc.Handle, *Interleaver) {
	t.Helper()

	log := nopLogger()

	h, err := proc.Spawn(context.Background(), &proc.Config{
		Args:   []string{"sh", "-c", script},
		Logger: log,
	})
	require.NoError(t, err)

	stdout := stream.NewReader(log, h.Stdout(), false, 1024, nil)
	stderr := stream.NewReader(log, h.Stderr(), true, 1024, nil)

	go func() { _ = stdout.Run() }()
	go func() { _ = stderr.Run() }()

	t.Cleanup(func() {
		_ = h.Terminate()
		_ = h.Close()
	})

	return h, New(log, h, stdout, stderr, [][]byte{[]byte("\n")}, 2*time.Millisecond)
}

// runToCompletion pulls events until the session finishes.
func runToCompletion(t *testing.T, il *Interleaver) []*Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var events []*Event

	for {
		ev, err := il.Next(ctx)
		if err != nil {
			require.ErrorIs(t, err, errors.ErrSessionFinished)

			return events
		}

		events = append(events, ev)
	}
}

func streamText(events []*Event, stderr bool) string {
	var buf []byte

	for _, ev := range events {
		if ev.Stderr != stderr {
			continue
		}

		buf = append(buf, ev.Chunk...)
	}

	return string(buf)
}

func messagesOf(events []*Event, stderr bool) []string {
	var msgs []string

	for _, ev := range events {
		if ev.Stderr != stderr {
			continue
		}

		for _, msg := range ev.Messages {
			msgs = append(msgs, string(msg))
		}
	}

	return msgs
}

func TestInterleaverSingleLine(t *testing.T) {
	_, il := startShell(t, "echo hello")

	assert.Equal(t, StateAwaitingFirstInput, il.State())

	events := runToCompletion(t, il)

	assert.Equal(t, "hello\n", streamText(events, false))
	assert.Equal(t, []string{"hello"}, messagesOf(events, false))
	assert.Empty(t, messagesOf(events, true))

	assert.Equal(t, StateFinished, il.State())

	code, known := il.ExitCode()
	require.True(t, known)
	assert.Equal(t, 0, code)
}

func TestInterleaverReportsExitCode(t *testing.T) {
	_, il := startShell(t, "exit 7")

	runToCompletion(t, il)

	code, known := il.ExitCode()
	require.True(t, known)
	assert.Equal(t, 7, code)
}

func TestInterleaverTagsBothStreams(t *testing.T) {
	_, il := startShell(t, "echo out; echo err >&2")

	events := runToCompletion(t, il)

	assert.Equal(t, []string{"out"}, messagesOf(events, false))
	assert.Equal(t, []string{"err"}, messagesOf(events, true))
}

func TestInterleaverDrainsTrailingPartial(t *testing.T) {
	_, il := startShell(t, "printf partial")

	events := runToCompletion(t, il)

	require.Equal(t, []string{"partial"}, messagesOf(events, false))

	// The trailing partial arrives as a drain event, without a chunk.
	last := events[len(events)-1]
	assert.Nil(t, last.Chunk)
	assert.False(t, last.Stderr)
}

func TestInterleaverPartialThenCompletion(t *testing.T) {
	_, il := startShell(t, "printf 'one\\ntwo'")

	events := runToCompletion(t, il)

	assert.Equal(t, []string{"one", "two"}, messagesOf(events, false))
	assert.Equal(t, "one\ntwo", streamText(events, false))
}

func TestInterleaverNextAfterFinished(t *testing.T) {
	_, il := startShell(t, "true")

	runToCompletion(t, il)

	_, err := il.Next(context.Background())
	require.ErrorIs(t, err, errors.ErrSessionFinished)

	_, err = il.Next(context.Background())
	require.ErrorIs(t, err, errors.ErrSessionFinished)
}

func TestInterleaverHonoursContext(t *testing.T) {
	_, il := startShell(t, "sleep 30")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := il.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// runToFailure pulls events until the session ends with an error other
// than normal completion.
func runToFailure(t *testing.T, il *Interleaver) ([]*Event, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var events []*Event

	for {
		ev, err := il.Next(ctx)
		if err != nil {
			return events, err
		}

		events = append(events, ev)
	}
}

func TestInterleaverStreamFailureForcesShutdown(t *testing.T) {
	h, il := startShell(t, "printf residue >&2; exec sleep 30")

	// Let the stderr bytes reach the reader before the failure.
	time.Sleep(100 * time.Millisecond)

	// Yank stdout out from under its reader mid-stream.
	require.NoError(t, h.Stdout().Close())

	events, err := runToFailure(t, il)

	var streamErr *errors.StreamError

	require.ErrorAs(t, err, &streamErr)
	assert.False(t, streamErr.Stderr, "stdout is the failed stream")
	require.NotErrorIs(t, err, errors.ErrSessionFinished)

	// Output buffered on the healthy stream is still delivered, including
	// its trailing partial during the drain.
	assert.Equal(t, []string{"residue"}, messagesOf(events, true))

	assert.Equal(t, StateFinished, il.State())

	_, known := il.ExitCode()
	assert.True(t, known, "forced shutdown reaps the child")
}

func TestInterleaverStreamFailureKillsTermImmuneChild(t *testing.T) {
	grace := terminateGrace
	terminateGrace = 100 * time.Millisecond

	t.Cleanup(func() { terminateGrace = grace })

	h, il := startShell(t, `trap '' TERM; printf stubborn >&2; exec sleep 30`)

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, h.Stdout().Close())

	events, err := runToFailure(t, il)

	var streamErr *errors.StreamError

	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, []string{"stubborn"}, messagesOf(events, true))

	_, known := il.ExitCode()
	assert.True(t, known, "SIGKILL escalation reaps a child that ignores SIGTERM")
}

func TestInterleaverStdinBeforeFirstEvent(t *testing.T) {
	h, il := startShell(t, `read line; [ "$line" = ping ] && echo pong`)

	// Input can be injected before the first stream poll.
	require.NoError(t, h.Write([]byte("ping\n")))

	events := runToCompletion(t, il)

	assert.Equal(t, []string{"pong"}, messagesOf(events, false))

	code, known := il.ExitCode()
	require.True(t, known)
	assert.Equal(t, 0, code)
}
