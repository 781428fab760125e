// Package procstream spawns child processes and streams their output
// without blocking the caller, while letting the caller inject stdin input
// between reads.
//
// A session reads the child's stdout and stderr concurrently, reassembles
// delimiter-terminated messages from the raw bytes, and interleaves the two
// streams round-robin into one ordered event sequence. Process exit is
// detected without losing output buffered in the pipes, and trailing bytes
// with no final delimiter are still delivered.
//
// # Interactive Sessions
//
// Spawn starts a child for two-way interaction:
//
//	session, err := procstream.Spawn(ctx, []string{"python3", "-i"},
//	    procstream.WithEncoding("UTF-8"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.Send([]byte("print('hello')\n"))
//	for event, err := range session.Events(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, msg := range event.Messages {
//	        fmt.Printf("[%s] %s\n", msg.Stream, msg.Text)
//	    }
//	}
//
// For finer control, drive the session manually with Next and Send: each
// Next call advances to the next suspension point, and Send injects stdin
// bytes between calls.
//
// # Combined Runner
//
// RunCombined is the simpler, fully synchronous variant: stderr merges
// into stdout and a callback after every read may answer prompts. Use it
// when a single decision loop is enough:
//
//	result, err := procstream.RunCombined(ctx, []string{"apt-get", "install", "foo"},
//	    func(proc *procstream.Process, output string, raw []byte) []byte {
//	        if strings.HasSuffix(output, "[Y/n] ") {
//	            return []byte("y\n")
//	        }
//	        return nil
//	    },
//	)
//
// # Blocking Helpers
//
// Call, Output and Start cover the non-streaming cases: run with inherited
// standard streams, run and collect output, and spawn with a terminate
// action.
//
// # Logging
//
// Logging is disabled by default. Use WithLogger for operation tracking:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	session, err := procstream.Spawn(ctx, args, procstream.WithLogger(logger))
//
// # Error Handling
//
// Configuration faults are rejected at spawn time as a ConfigError; they
// are never discovered mid-stream. Read failures on an output stream are
// session-fatal: the child is terminated and the error is returned after
// already-buffered output has been delivered. Terminating a child that
// already exited is not an error.
package procstream
