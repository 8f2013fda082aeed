package riff

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/streamio"
	"github.com/arguablykomodo/memedb-core/tagcodec"
)

// Magic is the "RIFF" FourCC at the start of every RIFF file.
var Magic = [4]byte{'R', 'I', 'F', 'F'}

const chunkFourCC = "meme"

// maxRiffLength is the largest value RIFF's 4-byte little-endian length
// field can hold.
const maxRiffLength = (1 << 32) - 1

// ReadTags scans a RIFF container for a sub-chunk with FourCC "meme" and
// decodes its body. It returns an empty set, not an error, if no such
// sub-chunk exists before the declared length is consumed.
func ReadTags(src streamio.Source) (tagcodec.Set, error) {
	const op = "riff.ReadTags"

	var header [12]byte
	if err := streamio.ReadFixed(op, "riff", src, header[:]); err != nil {
		return nil, err
	}
	declaredLength := int64(binary.LittleEndian.Uint32(header[4:8]))
	remaining := declaredLength - 4 // everything after the form identifier

	var consumed int64
	for consumed < remaining {
		fourCC, length, eof, err := readSubChunkHeader(op, src)
		if err != nil {
			return nil, err
		}
		if eof {
			return tagcodec.NewSet(), nil
		}

		chunkBytes := int64(8) + int64(length) + padding(length)
		consumed += chunkBytes
		if consumed > remaining {
			return nil, errs.New(op, "riff", errs.ErrInvalidSource)
		}

		if fourCC == chunkFourCC {
			body, err := streamio.ReadHeap(op, "riff", src, int(length))
			if err != nil {
				return nil, err
			}
			return tagcodec.DecodeTags(op, "riff", bytes.NewReader(body))
		}

		if err := streamio.Skip(op, "riff", src, int64(length)+padding(length)); err != nil {
			return nil, err
		}
	}

	return tagcodec.NewSet(), nil
}

// WriteTags copies src to sink, replacing any existing "meme" sub-chunk with
// one encoding tags (or omitting it entirely if tags is empty). The tag
// chunk is always appended last; no existing sub-chunk is reordered, which
// keeps WebP's ordering constraint intact.
func WriteTags(src streamio.Source, sink streamio.Sink, tags tagcodec.Set) error {
	const op = "riff.WriteTags"

	var header [12]byte
	if err := streamio.ReadFixed(op, "riff", src, header[:]); err != nil {
		return err
	}
	declaredLength := int64(binary.LittleEndian.Uint32(header[4:8]))
	remaining := declaredLength - 4 // everything after the form identifier

	buffered := streamio.NewBufferedSink()
	if _, err := buffered.Write(header[8:12]); err != nil {
		return errs.Wrap(op, "riff", errs.ErrIO, err)
	}

	var consumed int64
	for consumed < remaining {
		fourCC, length, eof, err := readSubChunkHeader(op, src)
		if err != nil {
			return err
		}
		if eof {
			break
		}

		chunkBytes := int64(8) + int64(length) + padding(length)
		consumed += chunkBytes
		if consumed > remaining {
			return errs.New(op, "riff", errs.ErrInvalidSource)
		}

		if fourCC == chunkFourCC {
			if err := streamio.Skip(op, "riff", src, int64(length)+padding(length)); err != nil {
				return err
			}
			continue
		}

		if err := passthroughSubChunk(op, src, buffered, fourCC, length); err != nil {
			return err
		}
	}

	if len(tags) > 0 {
		if err := writeTagSubChunk(op, buffered, tags); err != nil {
			return err
		}
	}

	total := int64(buffered.Len())
	if total > maxRiffLength {
		return errs.New(op, "riff", errs.ErrChunkSizeOverflow)
	}

	if _, err := sink.Write(Magic[:]); err != nil {
		return errs.Wrap(op, "riff", errs.ErrIO, err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(total))
	if _, err := sink.Write(lenBuf[:]); err != nil {
		return errs.Wrap(op, "riff", errs.ErrIO, err)
	}
	return buffered.Flush(op, "riff", sink)
}

// padding returns 1 if length is odd (RIFF pads odd-length bodies to an
// even boundary), 0 otherwise.
func padding(length uint32) int64 {
	if length%2 == 1 {
		return 1
	}
	return 0
}

// readSubChunkHeader reads a sub-chunk's 4-byte FourCC and 4-byte
// little-endian body length. eof is true only when no bytes at all could be
// read, which is not a grammar violation for this format.
func readSubChunkHeader(op string, src streamio.Source) (fourCC string, length uint32, eof bool, err error) {
	var hdr [8]byte
	n, rerr := io.ReadFull(src, hdr[:])
	if n == 0 && rerr == io.EOF {
		return "", 0, true, nil
	}
	if rerr != nil {
		return "", 0, false, errs.Wrap(op, "riff", errs.ErrIO, rerr)
	}
	return string(hdr[0:4]), binary.LittleEndian.Uint32(hdr[4:8]), false, nil
}

// passthroughSubChunk re-emits a sub-chunk's header, body, and padding byte
// unchanged.
func passthroughSubChunk(op string, src streamio.Source, sink streamio.Sink, fourCC string, length uint32) error {
	var hdr [8]byte
	copy(hdr[0:4], fourCC)
	binary.LittleEndian.PutUint32(hdr[4:8], length)
	if _, err := sink.Write(hdr[:]); err != nil {
		return errs.Wrap(op, "riff", errs.ErrIO, err)
	}
	return streamio.Passthrough(op, "riff", sink, src, int64(length)+padding(length))
}

// writeTagSubChunk builds and writes a full "meme" sub-chunk encoding tags.
func writeTagSubChunk(op string, sink streamio.Sink, tags tagcodec.Set) error {
	var payload bytes.Buffer
	if err := tagcodec.EncodeTags(op, "riff", &payload, tags); err != nil {
		return err
	}
	if payload.Len() > maxRiffLength {
		return errs.New(op, "riff", errs.ErrChunkSizeOverflow)
	}

	var hdr [8]byte
	copy(hdr[0:4], chunkFourCC)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(payload.Len()))
	if _, err := sink.Write(hdr[:]); err != nil {
		return errs.Wrap(op, "riff", errs.ErrIO, err)
	}
	if _, err := sink.Write(payload.Bytes()); err != nil {
		return errs.Wrap(op, "riff", errs.ErrIO, err)
	}
	if payload.Len()%2 == 1 {
		if _, err := sink.Write([]byte{0x00}); err != nil {
			return errs.Wrap(op, "riff", errs.ErrIO, err)
		}
	}
	return nil
}
