package format

import (
	"io"

	"github.com/arguablykomodo/memedb-core/errs"
)

type candidate struct {
	magic Magic
	alive bool
}

func (c *candidate) complete(bytesRead int) bool {
	return bytesRead >= c.magic.Offset+len(c.magic.Bytes)
}

// Identify reads a minimal prefix of r and matches it against Table,
// following the incremental candidate-filtering automaton of spec.md §4.7:
// bytes are read one at a time; any candidate whose offset has been reached
// is checked against the byte at its corresponding position and dropped on
// mismatch. The search stops as soon as no candidate can still match, as
// soon as exactly one candidate remains and its whole magic has been read
// and matched, or at EOF. At EOF, a candidate whose whole magic has been
// read and matched is returned if it is the only such candidate; the input
// is unrecognised otherwise.
//
// Identify never reads more than LongestPrefix bytes.
func Identify(r io.Reader) (Kind, bool, error) {
	candidates := make([]candidate, len(Table))
	for i, m := range Table {
		candidates[i] = candidate{magic: m, alive: true}
	}

	bytesRead := 0
	for bytesRead < LongestPrefix {
		var b [1]byte
		n, err := io.ReadFull(r, b[:])
		if n == 0 {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				matched := 0
				var kind Kind
				for i := range candidates {
					if candidates[i].alive && candidates[i].complete(bytesRead) {
						matched++
						kind = candidates[i].magic.Kind
					}
				}
				if matched == 1 {
					return kind, true, nil
				}
				return 0, false, nil
			}
			return 0, false, errs.Wrap("format.Identify", "", errs.ErrIO, err)
		}
		pos := bytesRead
		bytesRead++

		for i := range candidates {
			c := &candidates[i]
			if !c.alive || pos < c.magic.Offset || pos >= c.magic.Offset+len(c.magic.Bytes) {
				continue
			}
			if c.magic.Bytes[pos-c.magic.Offset] != b[0] {
				c.alive = false
			}
		}

		aliveCount := 0
		var sole *candidate
		for i := range candidates {
			if candidates[i].alive {
				aliveCount++
				sole = &candidates[i]
			}
		}
		if aliveCount == 0 {
			return 0, false, nil
		}
		if aliveCount == 1 && sole.complete(bytesRead) {
			return sole.magic.Kind, true, nil
		}
	}

	return 0, false, nil
}
