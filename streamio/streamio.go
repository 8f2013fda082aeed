// Package streamio provides the small set of I/O primitives every format
// module is built from: reading one byte, a fixed-size run, or a
// runtime-length run; skipping forward; and copying bytes through
// untouched. None of these primitives buffer more than the region they are
// asked to handle, which is what keeps the format modules' memory bound to
// O(longest single chunk/segment) regardless of input size.
package streamio

import (
	"io"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/internal/bufpool"
)

// Source is the read side every format module parses from: sequential
// reads, plus the ability to seek forward (Skip) and to rewind to the
// beginning exactly once, right after format identification.
type Source = io.ReadSeeker

// Sink is the write side every format module writes to: sequential writes
// only, never seeked.
type Sink = io.Writer

// ReadByte reads a single byte from r.
func ReadByte(op, format string, r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errs.Wrap(op, format, errs.ErrIO, err)
	}
	return b[0], nil
}

// ReadByteOK reads a single byte from r, lifting a clean EOF (no bytes
// available at all) into ok == false rather than an error. Any other I/O
// failure, including a partial read, is still reported as an error — the
// Go analogue of the spec's Option-returning EOF primitive.
func ReadByteOK(op, format string, r io.Reader) (b byte, ok bool, err error) {
	var buf [1]byte
	n, rerr := r.Read(buf[:])
	if n == 1 {
		return buf[0], true, nil
	}
	if rerr == io.EOF {
		return 0, false, nil
	}
	if rerr == nil {
		// Read returned (0, nil); retry once per io.Reader's contract.
		return ReadByteOK(op, format, r)
	}
	return 0, false, errs.Wrap(op, format, errs.ErrIO, rerr)
}

// ReadFixed fills buf entirely from r.
func ReadFixed(op, format string, r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return errs.Wrap(op, format, errs.ErrIO, err)
	}
	return nil
}

// ReadHeap reads exactly n bytes from r into a freshly allocated slice.
// Used for runtime-length reads (chunk/segment/box bodies) whose size isn't
// known until the header is parsed.
func ReadHeap(op, format string, r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadFixed(op, format, r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Skip advances r by n bytes without retaining them, preferring Seek when r
// supports it and falling back to a discarding copy otherwise.
func Skip(op, format string, r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(n, io.SeekCurrent); err != nil {
			return errs.Wrap(op, format, errs.ErrIO, err)
		}
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return errs.Wrap(op, format, errs.ErrIO, err)
	}
	return nil
}

// Passthrough copies exactly n bytes from r to w without inspecting them.
func Passthrough(op, format string, w io.Writer, r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(w, r, n); err != nil {
		return errs.Wrap(op, format, errs.ErrIO, err)
	}
	return nil
}

// Rewind seeks src back to its absolute start, the one backward seek the
// public ReadTags/WriteTags entry points perform after format
// identification.
func Rewind(op, format string, src Source) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return errs.Wrap(op, format, errs.ErrIO, err)
	}
	return nil
}

// SeekEnd returns the absolute length of src, restoring its prior position
// on the way out. Only ISO-BMFF's writer needs this, to size a trailing
// size-0 box.
func SeekEnd(op, format string, src Source) (length int64, err error) {
	cur, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errs.Wrap(op, format, errs.ErrIO, err)
	}
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errs.Wrap(op, format, errs.ErrIO, err)
	}
	if _, err := src.Seek(cur, io.SeekStart); err != nil {
		return 0, errs.Wrap(op, format, errs.ErrIO, err)
	}
	return end, nil
}

// BufferedSink wraps w in a pooled, growable in-memory buffer so a format
// module can "prepare then flush": accumulate bytes (because a header field
// depends on the total length) before writing anything to the real sink.
type BufferedSink struct {
	buf *bufpool.Buffer
}

// NewBufferedSink returns a BufferedSink backed by a pooled scratch buffer.
func NewBufferedSink() *BufferedSink {
	return &BufferedSink{buf: bufpool.GetSectionBuffer()}
}

// Write implements io.Writer.
func (b *BufferedSink) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// Len returns the number of bytes buffered so far.
func (b *BufferedSink) Len() int {
	return b.buf.Len()
}

// Flush writes the buffered bytes to w and releases the scratch buffer back
// to the pool.
func (b *BufferedSink) Flush(op, format string, w io.Writer) error {
	_, err := b.buf.WriteTo(w)
	bufpool.PutSectionBuffer(b.buf)
	b.buf = nil
	if err != nil {
		return errs.Wrap(op, format, errs.ErrIO, err)
	}
	return nil
}
