package config

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/wagiedev/procstream-go/internal/errors"
)

const (
	// DefaultChunkSize is the backpressure threshold: a stream reader blocks
	// once this many bytes are pending until the consumer drains them.
	DefaultChunkSize = 1024

	// DefaultPollInterval is the idle-wait duration between exit-code polls.
	DefaultPollInterval = 10 * time.Millisecond
)

// Options configures a process session.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ChunkSize is the backpressure threshold in bytes.
	// Zero means DefaultChunkSize.
	ChunkSize int

	// Delimiters is the ordered set of byte sequences that terminate a message.
	// Empty means a single newline delimiter.
	Delimiters [][]byte

	// Encoding is the IANA name of the character encoding used to decode
	// messages into text (e.g. "UTF-8", "ISO-8859-1").
	// Empty means messages are delivered as raw bytes only.
	Encoding string

	// Echo mirrors output to EchoWriter as it is produced, independent of
	// whether the caller consumes the event sequence promptly.
	Echo bool

	// EchoWriter is the destination for echoed output. Nil means os.Stdout.
	EchoWriter io.Writer

	// PollInterval is the idle-wait duration between exit-code polls.
	// Zero means DefaultPollInterval.
	PollInterval time.Duration

	// TerminateOnExit ties the child's lifetime to the spawn context: when
	// the context is cancelled the child is killed. Set by default; disable
	// to let the child outlive the context.
	TerminateOnExit bool

	// Env provides additional environment variables for the child process.
	Env map[string]string

	// Cwd sets the working directory for the child process.
	Cwd string

	// PTY attaches the child to a pseudo-terminal instead of pipes.
	// Only honored by the combined runner.
	PTY bool
}

// NewOptions returns an Options with defaults applied.
func NewOptions() *Options {
	return &Options{
		ChunkSize:       DefaultChunkSize,
		Delimiters:      [][]byte{[]byte("\n")},
		PollInterval:    DefaultPollInterval,
		TerminateOnExit: true,
	}
}

// Validate rejects malformed configuration. It is called eagerly at spawn
// time so configuration faults are never discovered mid-stream.
func (o *Options) Validate() error {
	if o.ChunkSize <= 0 {
		return &errors.ConfigError{Field: "chunk_size", Reason: "must be positive"}
	}

	if len(o.Delimiters) == 0 {
		return &errors.ConfigError{Field: "delimiters", Reason: "at least one delimiter is required"}
	}

	for _, d := range o.Delimiters {
		if len(d) == 0 {
			return &errors.ConfigError{Field: "delimiters", Reason: "delimiters must be non-empty"}
		}
	}

	if o.PollInterval <= 0 {
		return &errors.ConfigError{Field: "poll_interval", Reason: "must be positive"}
	}

	if o.Encoding != "" {
		if _, err := ResolveEncoding(o.Encoding); err != nil {
			return &errors.ConfigError{Field: "encoding", Reason: err.Error()}
		}
	}

	return nil
}

// ResolveEncoding looks up a character encoding by its IANA name.
func ResolveEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, err
	}

	if enc == nil {
		// The index knows the name but has no decoder for it.
		return nil, &errors.ConfigError{Field: "encoding", Reason: "unsupported encoding: " + name}
	}

	return enc, nil
}
