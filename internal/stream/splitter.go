package stream

import "bytes"

// Splitter assembles delimiter-terminated messages from a stream of byte
// chunks. Bytes past the last delimiter are held as the partial message
// until a later chunk completes them or Flush delivers them at end of
// stream.
//
// With multiple delimiters the earliest match in the buffer wins; when two
// delimiters match at the same offset the one configured first wins. A
// delimiter split across two chunks is matched once both halves arrived.
type Splitter struct {
	delims  [][]byte
	partial []byte
}

// NewSplitter creates a splitter for the given delimiter set.
// The set must be non-empty with non-empty entries; configuration
// validation enforces this before a splitter is ever constructed.
func NewSplitter(delims [][]byte) *Splitter {
	return &Splitter{delims: delims}
}

// Feed appends a chunk and returns the complete messages it produced, in
// order, without their delimiters. The returned slices are copies and
// remain valid after further Feed calls.
func (s *Splitter) Feed(chunk []byte) [][]byte {
	s.partial = append(s.partial, chunk...)

	var messages [][]byte

	for {
		idx, dlen := s.earliestMatch()
		if idx < 0 {
			break
		}

		msg := make([]byte, idx)
		copy(msg, s.partial[:idx])
		messages = append(messages, msg)

		s.partial = s.partial[idx+dlen:]
	}

	return messages
}

// Pending reports the size of the partial message.
func (s *Splitter) Pending() int {
	return len(s.partial)
}

// Flush returns the partial message and clears it. It is called exactly
// once per stream, after the stream is confirmed exhausted, so a final
// message with no trailing delimiter is still delivered.
func (s *Splitter) Flush() []byte {
	if len(s.partial) == 0 {
		return nil
	}

	residue := make([]byte, len(s.partial))
	copy(residue, s.partial)
	s.partial = nil

	return residue
}

// earliestMatch finds the first delimiter occurrence in the partial buffer.
// Returns the match offset and the matched delimiter's length, or (-1, 0).
func (s *Splitter) earliestMatch() (int, int) {
	best, bestLen := -1, 0

	for _, d := range s.delims {
		idx := bytes.Index(s.partial, d)
		if idx < 0 {
			continue
		}

		if best < 0 || idx < best {
			best, bestLen = idx, len(d)
		}
	}

	return best, bestLen
}
