package stream

import (
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/metrics"
)

// Reader pulls bytes from one of the child's output streams on its own
// goroutine and hands them to the consumer through a bounded channel.
//
// The channel is the stream's handoff point: the reader is its sole writer,
// the interleaver its sole reader. Chunks are delivered in read order,
// never duplicated. Closing the channel is the terminal "stream drained,
// reader finished" signal; any pending bytes are flushed first.
//
// Backpressure: bytes accumulate in a pending buffer while the consumer is
// busy. Once the pending buffer reaches the chunk size, the handoff becomes
// a blocking send, so memory stays bounded when the consumer lags.
type Reader struct {
	log       *slog.Logger
	src       io.Reader
	stderr    bool
	chunkSize int
	echo      io.Writer // nil disables echoing

	ch       chan []byte
	stop     chan struct{}
	stopOnce sync.Once

	err error // set before the channel is closed
}

// NewReader creates a reader for one output stream. It does not start
// reading; run Run on its own goroutine.
func NewReader(log *slog.Logger, src io.Reader, stderr bool, chunkSize int, echo io.Writer) *Reader {
	name := "stdout"
	if stderr {
		name = "stderr"
	}

	return &Reader{
		log:       log.With("component", "stream_reader", "stream", name),
		src:       src,
		stderr:    stderr,
		chunkSize: chunkSize,
		echo:      echo,
		ch:        make(chan []byte, 1),
		stop:      make(chan struct{}),
	}
}

// Chunks returns the handoff channel. It is closed when the reader
// finishes; buffered chunks remain receivable after close.
func (r *Reader) Chunks() <-chan []byte {
	return r.ch
}

// Stop requests a cooperative stop. The reader observes the request at
// most once per read attempt; a reader blocked in a read reflects it only
// after the read returns, which happens at the latest when the child exits
// and the pipe reaches end of file.
func (r *Reader) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Err reports the read failure that ended the stream, if any. Valid once
// the chunk channel is closed.
func (r *Reader) Err() error {
	return r.err
}

// Run reads the stream until end of file, a read failure, or a stop
// request with no data left. It always flushes pending bytes and closes the
// chunk channel on the way out. The returned error is the session-fatal
// read failure, or nil for a clean end of stream.
func (r *Reader) Run() error {
	defer close(r.ch)

	buf := make([]byte, r.chunkSize)

	var pending []byte

	stopped := false

	for {
		if !stopped {
			select {
			case <-r.stop:
				stopped = true
			default:
			}
		}

		n, err := r.src.Read(buf)

		if n > 0 {
			metrics.BytesRead(r.stderr, n)

			if r.echo != nil {
				// Echo at production time so mirroring never depends on
				// the consumer draining the sequence.
				_, _ = r.echo.Write(buf[:n])
			}

			pending = append(pending, buf[:n]...)
			pending = r.deliver(pending)
		}

		if err != nil {
			r.flush(pending)

			if IsEndOfStream(err) {
				r.log.Debug("Stream drained")

				return nil
			}

			r.err = &errors.StreamError{Stderr: r.stderr, Err: err}
			r.log.Error("Stream read failed", "error", err)

			return r.err
		}

		if stopped && n == 0 {
			r.flush(pending)
			r.log.Debug("Stream reader stopped")

			return nil
		}
	}
}

// deliver hands pending bytes to the consumer. Below the chunk size the
// send is opportunistic and the bytes keep accumulating if the consumer is
// busy; at the chunk size the send blocks.
func (r *Reader) deliver(pending []byte) []byte {
	if len(pending) >= r.chunkSize {
		r.ch <- pending
		metrics.ChunkDelivered(r.stderr)

		return nil
	}

	select {
	case r.ch <- pending:
		metrics.ChunkDelivered(r.stderr)

		return nil
	default:
		return pending
	}
}

// flush delivers any pending bytes with a blocking send.
func (r *Reader) flush(pending []byte) {
	if len(pending) == 0 {
		return
	}

	r.ch <- pending
	metrics.ChunkDelivered(r.stderr)
}

// IsEndOfStream reports whether a read error means the stream is cleanly
// exhausted. A pty master returns EIO rather than EOF once the child exits.
func IsEndOfStream(err error) bool {
	return stderrors.Is(err, io.EOF) || stderrors.Is(err, syscall.EIO)
}
