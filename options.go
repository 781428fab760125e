package procstream

import (
	"io"
	"log/slog"
	"time"

	"github.com/wagiedev/procstream-go/internal/config"
)

// Options configures a process session. Most callers use the functional
// options below instead of constructing this directly.
type Options = config.Options

// Option configures session behavior using the functional options pattern.
type Option func(*Options)

// applyOptions builds an Options with defaults and applies functional options.
func applyOptions(opts []Option) *Options {
	options := config.NewOptions()
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithChunkSize sets the backpressure threshold in bytes: a stream reader
// blocks once this many bytes are pending until the consumer drains them.
// Default is 1024.
func WithChunkSize(size int) Option {
	return func(o *Options) {
		o.ChunkSize = size
	}
}

// WithDelimiters sets the ordered set of byte sequences that terminate a
// message. Default is a single newline.
func WithDelimiters(delims ...[]byte) Option {
	return func(o *Options) {
		o.Delimiters = delims
	}
}

// WithDelimiter sets a single message delimiter from a string.
func WithDelimiter(delim string) Option {
	return func(o *Options) {
		o.Delimiters = [][]byte{[]byte(delim)}
	}
}

// WithEncoding sets the IANA name of the character encoding used to decode
// messages into text (e.g. "UTF-8", "ISO-8859-1"). If not set, messages
// carry raw bytes only.
func WithEncoding(name string) Option {
	return func(o *Options) {
		o.Encoding = name
	}
}

// WithEcho mirrors child output to the echo writer as it is produced,
// independent of whether the caller consumes the event sequence promptly.
func WithEcho(echo bool) Option {
	return func(o *Options) {
		o.Echo = echo
	}
}

// WithEchoWriter sets the destination for echoed output.
// Defaults to os.Stdout.
func WithEchoWriter(w io.Writer) Option {
	return func(o *Options) {
		o.EchoWriter = w
	}
}

// WithPollInterval sets the idle-wait duration between exit-code polls.
// Default is 10ms.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.PollInterval = d
	}
}

// WithTerminateOnExit controls whether the child's lifetime is tied to the
// spawn context: when enabled (the default), cancelling the context kills
// the child, so cleanup happens on every exit path. Disable to let the
// child outlive the context.
func WithTerminateOnExit(terminate bool) Option {
	return func(o *Options) {
		o.TerminateOnExit = terminate
	}
}

// WithEnv provides additional environment variables for the child process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithCwd sets the working directory for the child process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithPTY attaches the child to a pseudo-terminal instead of pipes.
// Only honored by RunCombined, where stdout and stderr are merged anyway;
// interactive children see a real terminal on all three streams.
func WithPTY(pty bool) Option {
	return func(o *Options) {
		o.PTY = pty
	}
}
