package png

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/streamio"
	"github.com/arguablykomodo/memedb-core/tagcodec"
)

// Magic is the 8-byte PNG signature.
var Magic = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const chunkType = "meMe"

// maxChunkData is the largest chunk data length PNG's 4-byte length field
// can express.
const maxChunkData = (1 << 32) - 1

// ReadTags scans a PNG container for a meMe chunk and decodes its payload.
// It returns an empty set, not an error, if no meMe chunk exists before
// IEND.
func ReadTags(src streamio.Source) (tagcodec.Set, error) {
	const op = "png.ReadTags"

	var magic [8]byte
	if err := streamio.ReadFixed(op, "png", src, magic[:]); err != nil {
		return nil, err
	}

	for {
		length, typ, err := readChunkHeaderAt(op, src)
		if err != nil {
			return nil, err
		}

		switch typ {
		case "IEND":
			return tagcodec.NewSet(), nil
		case chunkType:
			data, err := streamio.ReadHeap(op, "png", src, int(length))
			if err != nil {
				return nil, err
			}
			var storedCRC [4]byte
			if err := streamio.ReadFixed(op, "png", src, storedCRC[:]); err != nil {
				return nil, err
			}
			if binary.BigEndian.Uint32(storedCRC[:]) != chunkCRC(data) {
				return nil, errs.New(op, "png", errs.ErrPNGChecksum)
			}
			return tagcodec.DecodeTags(op, "png", bytes.NewReader(data))
		default:
			if err := streamio.Skip(op, "png", src, int64(length)+4); err != nil {
				return nil, err
			}
		}
	}
}

// WriteTags copies src to sink, replacing any existing meMe chunk with one
// encoding tags (or omitting the chunk entirely if tags is empty).
func WriteTags(src streamio.Source, sink streamio.Sink, tags tagcodec.Set) error {
	const op = "png.WriteTags"

	var magic [8]byte
	if err := streamio.ReadFixed(op, "png", src, magic[:]); err != nil {
		return err
	}
	if _, err := sink.Write(magic[:]); err != nil {
		return errs.Wrap(op, "png", errs.ErrIO, err)
	}

	// Passthrough the first chunk (IHDR by grammar) verbatim.
	if err := passthroughChunk(op, src, sink); err != nil {
		return err
	}

	if len(tags) > 0 {
		if err := writeTagChunk(op, sink, tags); err != nil {
			return err
		}
	}

	for {
		length, typ, err := readChunkHeaderAt(op, src)
		if err != nil {
			return err
		}

		switch typ {
		case chunkType:
			if err := streamio.Skip(op, "png", src, int64(length)+4); err != nil {
				return err
			}
		default:
			var hdr [8]byte
			binary.BigEndian.PutUint32(hdr[0:4], length)
			copy(hdr[4:8], typ)
			if _, err := sink.Write(hdr[:]); err != nil {
				return errs.Wrap(op, "png", errs.ErrIO, err)
			}
			if err := passthroughChunkBody(op, src, sink, length); err != nil {
				return err
			}
			if typ == "IEND" {
				return nil
			}
		}
	}
}

// readChunkHeaderAt exists only to distinguish "no more chunks, EOF" from a
// real error at the loop boundary; PNG requires an IEND before EOF, so
// reaching EOF here means the grammar was violated.
func readChunkHeaderAt(op string, src streamio.Source) (uint32, string, error) {
	var hdr [8]byte
	n, err := io.ReadFull(src, hdr[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return 0, "", errs.New(op, "png", errs.ErrInvalidSource)
		}
		return 0, "", errs.Wrap(op, "png", errs.ErrIO, err)
	}
	return binary.BigEndian.Uint32(hdr[0:4]), string(hdr[4:8]), nil
}

func passthroughChunk(op string, src streamio.Source, sink streamio.Sink) error {
	length, typ, err := readChunkHeaderAt(op, src)
	if err != nil {
		return err
	}
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], length)
	copy(hdr[4:8], typ)
	if _, err := sink.Write(hdr[:]); err != nil {
		return errs.Wrap(op, "png", errs.ErrIO, err)
	}
	return passthroughChunkBody(op, src, sink, length)
}

// passthroughChunkBody copies a chunk's data and CRC to sink. The caller has
// already read (and must re-emit) the 8-byte header; this copies only
// data+CRC. Used both for the IHDR passthrough helper above (which
// re-emits the header itself) and the trailing walk (which re-emits the
// header inline).
func passthroughChunkBody(op string, src streamio.Source, sink streamio.Sink, length uint32) error {
	return streamio.Passthrough(op, "png", sink, src, int64(length)+4)
}

func chunkCRC(data []byte) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte(chunkType))
	_, _ = h.Write(data)
	return h.Sum32()
}

func writeTagChunk(op string, sink streamio.Sink, tags tagcodec.Set) error {
	var payload bytes.Buffer
	if err := tagcodec.EncodeTags(op, "png", &payload, tags); err != nil {
		return err
	}
	if payload.Len() > maxChunkData {
		return errs.New(op, "png", errs.ErrChunkSizeOverflow)
	}

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(payload.Len()))
	copy(hdr[4:8], chunkType)
	if _, err := sink.Write(hdr[:]); err != nil {
		return errs.Wrap(op, "png", errs.ErrIO, err)
	}
	if _, err := sink.Write(payload.Bytes()); err != nil {
		return errs.Wrap(op, "png", errs.ErrIO, err)
	}

	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], chunkCRC(payload.Bytes()))
	if _, err := sink.Write(crc[:]); err != nil {
		return errs.Wrap(op, "png", errs.ErrIO, err)
	}
	return nil
}
