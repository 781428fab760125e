// Package interleave merges the two output stream channels of a child
// process into one ordered event sequence.
//
// The interleaver is a cooperative state machine driven entirely by its
// caller: it never blocks on stream data, it polls the two handoff channels
// in strict round-robin, and it suspends only at well-defined points where
// the caller observes newly produced output and may inject input. Idle
// waiting uses a bounded sleep between exit-code polls instead of
// suspending, so the caller is only woken when there is something to see.
package interleave

import (
	"context"
	"log/slog"
	"time"

	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/metrics"
	"github.com/wagiedev/procstream-go/internal/proc"
	"github.com/wagiedev/procstream-go/internal/stream"
)

// State is the interleaver's lifecycle phase.
type State int

const (
	// StateAwaitingFirstInput is the initial state: no stream has been
	// touched, and the caller may inject an initial stdin payload first.
	StateAwaitingFirstInput State = iota

	// StateStreaming alternates between the two stream channels, yielding
	// an event per chunk of output.
	StateStreaming

	// StateDraining delivers each stream's trailing partial message after
	// the child exited and both readers finished.
	StateDraining

	// StateFinished is terminal: the exit code is recorded and no further
	// events are produced.
	StateFinished
)

// emptyCountdown is the number of consecutive empty polls tolerated before
// the interleaver checks the child for an exit code. The two-phase policy
// keeps output written just before process exit from being lost, and the
// sleep between resets avoids busy-spinning against the scheduler.
const emptyCountdown = 2

// Event is one suspension point's yield: the raw chunk, the complete
// messages it produced, and which stream they came from. During draining
// the chunk is nil and the single message is a stream's trailing partial.
type Event struct {
	Chunk    []byte
	Messages [][]byte
	Stderr   bool
}

// Interleaver consumes the two stream readers of one child process in
// strict round-robin and assembles delimited messages. It is not safe for
// concurrent use; the session serializes access.
type Interleaver struct {
	log          *slog.Logger
	handle       *proc.Handle
	readers      [2]*stream.Reader   // [0] stdout, [1] stderr
	splitters    [2]*stream.Splitter // partial message buffers
	pollInterval time.Duration

	state      State
	stderrTurn bool // stream polled on the current iteration
	countdown  int

	finished  [2]bool // reader emitted its terminal signal
	exitCode  int
	exitKnown bool

	fatal    error // session-fatal stream failure
	drainIdx int
}

// New creates an interleaver over a process handle and its two readers.
func New(
	log *slog.Logger,
	handle *proc.Handle,
	stdout, stderr *stream.Reader,
	delims [][]byte,
	pollInterval time.Duration,
) *Interleaver {
	return &Interleaver{
		log:          log.With("component", "interleaver"),
		handle:       handle,
		readers:      [2]*stream.Reader{stdout, stderr},
		splitters:    [2]*stream.Splitter{stream.NewSplitter(delims), stream.NewSplitter(delims)},
		pollInterval: pollInterval,
		state:        StateAwaitingFirstInput,
		stderrTurn:   true, // first flip selects stdout
		countdown:    emptyCountdown,
	}
}

// State returns the current lifecycle phase.
func (il *Interleaver) State() State {
	return il.state
}

// ExitCode returns the child's exit code. Defined once the exit has been
// observed; it never changes afterwards.
func (il *Interleaver) ExitCode() (int, bool) {
	return il.exitCode, il.exitKnown
}

// Next advances to the next suspension point and returns its event.
// It returns ErrSessionFinished once the terminal state is reached, or the
// session-fatal stream error if one ended the session. The context bounds
// the time spent idle-polling.
func (il *Interleaver) Next(ctx context.Context) (*Event, error) {
	switch il.state {
	case StateFinished:
		return nil, errors.ErrSessionFinished
	case StateAwaitingFirstInput:
		il.state = StateStreaming
	case StateStreaming, StateDraining:
	}

	if il.state == StateStreaming {
		ev, err := il.stream(ctx)
		if ev != nil || err != nil {
			return ev, err
		}
		// Fell through to draining.
	}

	return il.drain()
}

// stream runs Streaming iterations until a chunk of output is available or
// the session moves to Draining. A nil, nil return means draining begins.
func (il *Interleaver) stream(ctx context.Context) (*Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		il.stderrTurn = !il.stderrTurn

		idx := 0
		if il.stderrTurn {
			idx = 1
		}

		if chunk := il.poll(idx); len(chunk) > 0 {
			il.countdown = emptyCountdown

			messages := il.splitters[idx].Feed(chunk)
			metrics.MessagesParsed(idx == 1, len(messages))

			return &Event{Chunk: chunk, Messages: messages, Stderr: idx == 1}, nil
		}

		il.countdown--
		if il.countdown > 0 {
			continue
		}

		il.countdown = emptyCountdown

		if !il.exitKnown {
			if code, ok := il.handle.Poll(); ok {
				il.exitKnown = true
				il.exitCode = code
				il.log.Debug("Child exit observed", "exit_code", code)

				// The readers drain what is left and emit their terminal
				// signal.
				il.readers[0].Stop()
				il.readers[1].Stop()

				continue
			}

			if err := il.sleep(ctx); err != nil {
				return nil, err
			}

			continue
		}

		if il.finished[0] && il.finished[1] {
			il.state = StateDraining
			il.log.Debug("Both streams exhausted, draining partial messages")

			return nil, nil
		}

		// Exit known but the readers have not confirmed their terminal
		// signal yet; output may still be in flight.
		if err := il.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// poll non-blockingly checks one stream's channel. A closed channel marks
// that reader finished; a read failure there is session-fatal and forces
// termination so the session winds down with whatever was buffered.
func (il *Interleaver) poll(idx int) []byte {
	if il.finished[idx] {
		return nil
	}

	select {
	case chunk, ok := <-il.readers[idx].Chunks():
		if !ok {
			il.finished[idx] = true

			if err := il.readers[idx].Err(); err != nil && il.fatal == nil {
				il.fatal = err
				il.log.Error("Session-fatal stream failure", "error", err)
				il.forceShutdown()
			}

			return nil
		}

		return chunk
	default:
		return nil
	}
}

// drain yields each stream's trailing partial message once, then finishes.
func (il *Interleaver) drain() (*Event, error) {
	for il.drainIdx < 2 {
		idx := il.drainIdx
		il.drainIdx++

		if residue := il.splitters[idx].Flush(); residue != nil {
			metrics.MessagesParsed(idx == 1, 1)

			return &Event{Messages: [][]byte{residue}, Stderr: idx == 1}, nil
		}
	}

	il.state = StateFinished
	il.log.Debug("Session finished", "exit_code", il.exitCode)

	if il.fatal != nil {
		return nil, il.fatal
	}

	return nil, errors.ErrSessionFinished
}

// terminateGrace is how long a child gets to honour SIGTERM after a
// session-fatal failure before it is killed outright.
var terminateGrace = 2 * time.Second

// forceShutdown terminates the child and stops both readers after a
// session-fatal failure, escalating to SIGKILL if the child ignores
// SIGTERM. The exit code then surfaces through the normal polling path.
func (il *Interleaver) forceShutdown() {
	_ = il.handle.Terminate()
	il.readers[0].Stop()
	il.readers[1].Stop()

	go func() {
		t := time.NewTimer(terminateGrace)
		defer t.Stop()

		select {
		case <-il.handle.Exited():
		case <-t.C:
			il.log.Warn("Child ignored termination, killing")
			_ = il.handle.Kill()
		}
	}()
}

// sleep pauses for one poll interval or until the context is cancelled.
func (il *Interleaver) sleep(ctx context.Context) error {
	t := time.NewTimer(il.pollInterval)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
