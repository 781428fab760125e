package procstream

// Stream identifies which child output stream bytes came from.
type Stream int

const (
	// Stdout is the child's primary output stream.
	Stdout Stream = iota
	// Stderr is the child's error output stream.
	Stderr
)

// String implements fmt.Stringer.
func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}

	return "stdout"
}

// Message is one delimited unit of child output, tagged with its origin
// stream. Text is populated only when an encoding is configured; Bytes is
// always the raw message without its delimiter.
type Message struct {
	Bytes  []byte
	Text   string
	Stream Stream
}

// Event is the yield of one session suspension point: the raw chunk as it
// arrived, the zero or more complete messages it produced, and the stream
// they came from. During draining Chunk is nil and Messages holds a
// stream's trailing partial message.
type Event struct {
	Chunk    []byte
	Messages []Message
	Stream   Stream
}

// CombinedResult is the outcome of RunCombined: the child's exit code and
// its merged stdout/stderr output, both decoded and raw.
type CombinedResult struct {
	ExitCode int
	Output   string
	Bytes    []byte
}

// OutputFunc is invoked by RunCombined after every non-empty read with the
// running child's handle and the output accumulated so far. A non-empty
// return value is written to the child's stdin immediately, before the next
// read. The handle lets the callback poll or terminate the child mid-run.
type OutputFunc func(proc *Process, output string, raw []byte) []byte
