package procstream

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/encoding"

	"github.com/wagiedev/procstream-go/internal/config"
	"github.com/wagiedev/procstream-go/internal/errors"
	"github.com/wagiedev/procstream-go/internal/metrics"
	"github.com/wagiedev/procstream-go/internal/proc"
	"github.com/wagiedev/procstream-go/internal/stream"
)

// RunCombined runs a child process with stderr merged into stdout, blocking
// until it exits, and returns the exit code plus the complete accumulated
// output as decoded text and raw bytes.
//
// After every non-empty read, onOutput (if non-nil) receives the child's
// handle and the output accumulated so far; a non-empty return value is
// written to the child's stdin before the next read, and the handle lets
// the callback poll or terminate the child mid-run. This trades the
// stdout/stderr distinction for a single synchronous decision loop, which
// is all an interactive prompt-response driver needs:
//
//	result, err := procstream.RunCombined(ctx, []string{"ssh-keygen", "-t", "ed25519"},
//	    func(proc *procstream.Process, output string, raw []byte) []byte {
//	        if strings.HasSuffix(output, "passphrase): ") {
//	            return []byte("\n")
//	        }
//	        return nil
//	    },
//	)
//
// With WithPTY the child runs on a pseudo-terminal instead of pipes, so
// children that only prompt on a tty behave interactively.
func RunCombined(ctx context.Context, args []string, onOutput OutputFunc, opts ...Option) (*CombinedResult, error) {
	options := applyOptions(opts)

	if err := options.Validate(); err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	log = log.With("component", "combined_runner", "session_id", ulid.Make().String())

	cfg := &proc.Config{
		Args:         args,
		Env:          options.Env,
		Cwd:          options.Cwd,
		TieToContext: options.TerminateOnExit,
		Combined:     true,
		Logger:       log,
	}

	var (
		handle *proc.Handle
		err    error
	)

	if options.PTY {
		handle, err = proc.SpawnPTY(ctx, cfg)
	} else {
		handle, err = proc.Spawn(ctx, cfg)
	}

	if err != nil {
		return nil, err
	}

	defer handle.Close()

	var enc encoding.Encoding

	if options.Encoding != "" {
		enc, _ = config.ResolveEncoding(options.Encoding)
	}

	var echo io.Writer

	if options.Echo {
		echo = options.EchoWriter
		if echo == nil {
			echo = os.Stdout
		}
	}

	collected, err := readLoop(log, handle, onOutput, enc, echo, options.ChunkSize)
	if err != nil {
		_ = handle.Terminate()

		return nil, err
	}

	code, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	return &CombinedResult{
		ExitCode: code,
		Output:   decodeAll(log, enc, collected),
		Bytes:    collected,
	}, nil
}

// readLoop synchronously reads the merged output stream until end of
// stream, invoking the callback after each non-empty read.
func readLoop(
	log *slog.Logger,
	handle *proc.Handle,
	onOutput OutputFunc,
	enc encoding.Encoding,
	echo io.Writer,
	chunkSize int,
) ([]byte, error) {
	buf := make([]byte, chunkSize)

	var collected []byte

	for {
		n, err := handle.Stdout().Read(buf)

		if n > 0 {
			metrics.BytesRead(false, n)
			collected = append(collected, buf[:n]...)

			if echo != nil {
				_, _ = echo.Write(buf[:n])
			}

			if onOutput != nil {
				if input := onOutput(handle, decodeAll(log, enc, collected), collected); len(input) > 0 {
					if werr := handle.Write(input); werr != nil {
						return collected, werr
					}

					if echo != nil {
						_, _ = echo.Write(input)
					}
				}
			}
		}

		if err != nil {
			if stream.IsEndOfStream(err) {
				return collected, nil
			}

			log.Error("Combined stream read failed", "error", err)

			return collected, &errors.StreamError{Err: err}
		}
	}
}

// decodeAll converts accumulated output with the configured encoding, or a
// direct byte-to-string conversion when none is set.
func decodeAll(log *slog.Logger, enc encoding.Encoding, raw []byte) string {
	if enc == nil {
		return string(raw)
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		log.Warn("Failed to decode combined output, delivering raw", "error", err)

		return string(raw)
	}

	return string(decoded)
}
