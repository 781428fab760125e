package procstream

import (
	"context"
	stderrors "errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/wagiedev/procstream-go/internal/config"
	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/interleave"
	"github.com/wagiedev/procstream-go/internal/proc"
	"github.com/wagiedev/procstream-go/internal/stream"
)

// Session is one interactive child process: two concurrent stream readers,
// the interleaver merging them into an ordered event sequence, and the
// child's stdin for input injection.
//
// The caller drives the session by alternating Next and (optionally) Send:
// each Next advances to the next suspension point and yields the output
// produced there; Send injects bytes into the child's stdin between
// suspension points, including before the first Next. Sessions are
// single-use; once finished or closed, spawn a new one.
//
// Next must be called from one goroutine at a time. Send is safe to call
// concurrently with Next.
type Session struct {
	log     *slog.Logger
	id      string
	handle  *proc.Handle
	il      *interleave.Interleaver
	readers [2]*stream.Reader
	enc     encoding.Encoding // nil means raw bytes only
	group   *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// Spawn starts a child process for two-way interaction.
//
// Configuration is validated before the process exists, so malformed
// options surface as a ConfigError with no side effects. By default the
// child is killed when ctx is cancelled (see WithTerminateOnExit), which
// gives cleanup on every exit path without any global shutdown hook.
//
// Typical use:
//
//	session, err := procstream.Spawn(ctx, []string{"python3", "-i"},
//	    procstream.WithEncoding("UTF-8"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	if err := session.Send([]byte("print(6 * 7)\n")); err != nil {
//	    return err
//	}
//	for event, err := range session.Events(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    for _, msg := range event.Messages {
//	        fmt.Printf("[%s] %s\n", msg.Stream, msg.Text)
//	    }
//	}
//	code, _ := session.ExitCode()
func Spawn(ctx context.Context, args []string, opts ...Option) (*Session, error) {
	options := applyOptions(opts)

	if err := options.Validate(); err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	id := ulid.Make().String()
	log = log.With("component", "session", "session_id", id)

	handle, err := proc.Spawn(ctx, &proc.Config{
		Args:         args,
		Env:          options.Env,
		Cwd:          options.Cwd,
		TieToContext: options.TerminateOnExit,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	var enc encoding.Encoding

	if options.Encoding != "" {
		// Validated above; resolution cannot fail here.
		enc, _ = config.ResolveEncoding(options.Encoding)
	}

	var echo io.Writer

	if options.Echo {
		echo = options.EchoWriter
		if echo == nil {
			echo = os.Stdout
		}
	}

	stdout := stream.NewReader(log, handle.Stdout(), false, options.ChunkSize, echo)
	stderr := stream.NewReader(log, handle.Stderr(), true, options.ChunkSize, echo)

	group := new(errgroup.Group)
	group.Go(stdout.Run)
	group.Go(stderr.Run)

	return &Session{
		log:     log,
		id:      id,
		handle:  handle,
		il:      interleave.New(log, handle, stdout, stderr, options.Delimiters, options.PollInterval),
		readers: [2]*stream.Reader{stdout, stderr},
		enc:     enc,
		group:   group,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// PID returns the child's process ID.
func (s *Session) PID() int {
	return s.handle.PID()
}

// Next advances the session to its next suspension point and returns the
// event produced there. It returns ErrSessionFinished once the child has
// exited and all output, including trailing partial messages, has been
// delivered; the exit code is then available from ExitCode. A
// session-fatal stream failure is returned after the buffered output has
// been drained.
//
// The context bounds the time spent waiting for output; cancelling it
// returns early without losing session state.
func (s *Session) Next(ctx context.Context) (*Event, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, errors.ErrSessionClosed
	}

	ev, err := s.il.Next(ctx)
	if err != nil {
		return nil, err
	}

	return s.publish(ev), nil
}

// Events returns an iterator over the session's remaining events, driving
// Next until the session finishes. ErrSessionFinished is consumed by the
// iterator; any other error is yielded once and ends the iteration.
// Input can still be injected with Send from the loop body.
func (s *Session) Events(ctx context.Context) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				if !stderrors.Is(err, errors.ErrSessionFinished) {
					yield(nil, err)
				}

				return
			}

			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Send injects bytes into the child's stdin. Empty input is a no-op.
// Legal at any suspension point, including before the first Next.
func (s *Session) Send(data []byte) error {
	return s.handle.Write(data)
}

// CloseStdin signals end of input to the child. Children that read stdin
// to exhaustion (filters like cat or sort) exit only after this.
func (s *Session) CloseStdin() error {
	return s.handle.CloseStdin()
}

// Terminate best-effort terminates the child. A child that already exited
// is not an error, and repeated calls have the same effect as the first.
func (s *Session) Terminate() error {
	return s.handle.Terminate()
}

// ExitCode returns the child's exit code. The second return is false until
// the exit has been observed; once true, the code never changes.
func (s *Session) ExitCode() (int, bool) {
	return s.il.ExitCode()
}

// Close tears the session down: the child is terminated if still running,
// both readers are stopped and drained, and the pipes are closed.
// Idempotent; the session cannot be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.log.Debug("Closing session")

	termErr := s.handle.Terminate()

	s.readers[0].Stop()
	s.readers[1].Stop()

	// Unblock readers stuck in a read, then release any reader blocked on
	// a backpressure send so both goroutines can finish.
	closeErr := s.handle.Close()

	for range s.readers[0].Chunks() { //nolint:revive // draining
	}

	for range s.readers[1].Chunks() { //nolint:revive // draining
	}

	// Reader errors after a forced close are expected teardown noise.
	_ = s.group.Wait()

	if termErr != nil {
		return termErr
	}

	return closeErr
}

// publish converts an internal interleaver event to the public shape,
// decoding messages when an encoding is configured.
func (s *Session) publish(ev *interleave.Event) *Event {
	origin := Stdout
	if ev.Stderr {
		origin = Stderr
	}

	messages := make([]Message, 0, len(ev.Messages))

	for _, raw := range ev.Messages {
		msg := Message{Bytes: raw, Stream: origin}

		if s.enc != nil {
			msg.Text = s.decode(raw)
		}

		messages = append(messages, msg)
	}

	return &Event{Chunk: ev.Chunk, Messages: messages, Stream: origin}
}

// decode converts raw message bytes with the configured encoding, falling
// back to a direct byte-to-string conversion if the decoder rejects the
// input.
func (s *Session) decode(raw []byte) string {
	decoded, err := s.enc.NewDecoder().Bytes(raw)
	if err != nil {
		s.log.Warn("Failed to decode message, delivering raw", "error", err)

		return string(raw)
	}

	return string(decoded)
}
