// Package tagcodec implements the self-delimited byte encoding every format
// module uses to serialize and deserialize a tag set once it has located
// the tag region. It is the sole sub-encoding shared across formats: a
// format module never encodes a tag directly, it always hands the job to
// EncodeTags/DecodeTags.
//
// The wire format is the high-bit-terminated chunked encoding: each tag is
// split into runs of up to 127 bytes, every run but the last prefixed by a
// plain length byte (0x01..0x7F), the last prefixed by the same length with
// its high bit set (0x80..0xFF) to mark the end of that tag. A single 0x00
// byte terminates the set. This removes the 255-byte-per-tag wire cap an
// older, incompatible generation of this format enforced (see DESIGN.md);
// that flat codec is not implemented here; a reader built against it would
// not understand this package's output, and vice versa.
package tagcodec

import (
	"io"
	"sort"
	"unicode/utf8"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/internal/bufpool"
)

// maxChunkLen is the largest number of payload bytes a single chunk can
// carry: the length byte's low 7 bits top out at 0x7F.
const maxChunkLen = 0x7F

// Set is an unordered collection of tags; duplicates collapse because it is
// a set. Validity (non-empty, <=255 UTF-8 bytes) is checked at encode time,
// not at construction.
type Set map[string]struct{}

// NewSet builds a Set from individual tags, deduplicating as it goes.
func NewSet(tags ...string) Set {
	s := make(Set, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Sorted returns the set's tags ordered by ascending byte value, the order
// EncodeTags emits them in and the basis for round-trip byte comparisons.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether s and other contain exactly the same tags.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if _, ok := other[t]; !ok {
			return false
		}
	}
	return true
}

// MaxTagBytes is the data-model ceiling on a single tag's UTF-8 length,
// independent of which wire codec is in use.
const MaxTagBytes = 255

// Validate reports whether every tag in s is non-empty and at most
// MaxTagBytes UTF-8 bytes long.
func (s Set) Validate() error {
	for t := range s {
		if len(t) == 0 || len(t) > MaxTagBytes {
			return errs.New("tagcodec.Validate", "", errs.ErrInvalidTags)
		}
	}
	return nil
}

// EncodeTags writes s to w in sorted order using the chunked encoding
// described in the package doc. It validates every tag before writing
// anything, so a validation failure never leaves a partial payload in w.
func EncodeTags(op, format string, w io.Writer, s Set) error {
	if err := s.Validate(); err != nil {
		return err
	}

	buf := bufpool.GetChunkBuffer()
	defer bufpool.PutChunkBuffer(buf)

	for _, tag := range s.Sorted() {
		if err := encodeTag(op, format, w, buf, tag); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte{0x00}); err != nil {
		return errs.Wrap(op, format, errs.ErrIO, err)
	}
	return nil
}

func encodeTag(op, format string, w io.Writer, scratch *bufpool.Buffer, tag string) error {
	remaining := []byte(tag)
	for {
		n := len(remaining)
		terminal := n <= maxChunkLen
		if !terminal {
			n = maxChunkLen
		}

		scratch.Reset()
		lengthByte := byte(n)
		if terminal {
			lengthByte |= 0x80
		}
		scratch.B = append(scratch.B, lengthByte)
		scratch.B = append(scratch.B, remaining[:n]...)

		if _, err := w.Write(scratch.Bytes()); err != nil {
			return errs.Wrap(op, format, errs.ErrIO, err)
		}

		remaining = remaining[n:]
		if terminal {
			return nil
		}
	}
}

// DecodeTags reads a chunked tag payload from r until the 0x00 set
// terminator, returning the decoded Set.
func DecodeTags(op, format string, r io.Reader) (Set, error) {
	out := make(Set)
	var current []byte

	for {
		var lenByte [1]byte
		if _, err := io.ReadFull(r, lenByte[:]); err != nil {
			return nil, errs.Wrap(op, format, errs.ErrIO, err)
		}
		b := lenByte[0]

		if b == 0x00 {
			return out, nil
		}

		n := int(b & 0x7F)
		chunk := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, chunk); err != nil {
				return nil, errs.Wrap(op, format, errs.ErrIO, err)
			}
		}
		current = append(current, chunk...)

		if b&0x80 != 0 {
			if !utf8.Valid(current) {
				return nil, errs.New(op, format, errs.ErrUTF8)
			}
			out[string(current)] = struct{}{}
			current = nil
		}
	}
}
