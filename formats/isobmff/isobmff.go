package isobmff

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/streamio"
	"github.com/arguablykomodo/memedb-core/tagcodec"
)

// Magic is the "ftyp" box type this package's Identify entry matches at
// offset 4.
var Magic = [4]byte{'f', 't', 'y', 'p'}

// tagUUID is the real UUID of the uuid box this package owns.
var tagUUID = [16]byte{
	0x12, 0xEB, 0xC6, 0x4D, 0xEA, 0x62, 0x47, 0xA0,
	0x8E, 0x92, 0xB9, 0xFB, 0x3B, 0x51, 0x8C, 0x28,
}

// boxHeader describes one box header already consumed from the source.
type boxHeader struct {
	typ        string
	uuid       [16]byte // valid only when typ == "uuid"
	headerSize int64    // bytes the header itself occupied
	dataSize   int64    // body length; -1 if terminal (declared size 0)
	terminal   bool
}

// readBoxHeader reads one box header. eof is true only when zero bytes could
// be read at all (no more boxes, not a grammar violation for this format).
func readBoxHeader(op string, src streamio.Source) (hdr *boxHeader, eof bool, err error) {
	var sizeBuf [4]byte
	n, rerr := io.ReadFull(src, sizeBuf[:])
	if n == 0 && rerr == io.EOF {
		return nil, true, nil
	}
	if rerr != nil {
		return nil, false, errs.Wrap(op, "isobmff", errs.ErrIO, rerr)
	}

	var typBuf [4]byte
	if err := streamio.ReadFixed(op, "isobmff", src, typBuf[:]); err != nil {
		return nil, false, err
	}

	rawSize := binary.BigEndian.Uint32(sizeBuf[:])
	terminal := rawSize == 0
	headerSize := int64(8)
	var totalSize int64

	switch {
	case terminal:
		totalSize = -1
	case rawSize == 1:
		var extBuf [8]byte
		if err := streamio.ReadFixed(op, "isobmff", src, extBuf[:]); err != nil {
			return nil, false, err
		}
		headerSize += 8
		totalSize = int64(binary.BigEndian.Uint64(extBuf[:]))
	default:
		totalSize = int64(rawSize)
	}

	typ := string(typBuf[:])
	var uuid [16]byte
	if typ == "uuid" {
		if err := streamio.ReadFixed(op, "isobmff", src, uuid[:]); err != nil {
			return nil, false, err
		}
		headerSize += 16
	}

	if terminal {
		return &boxHeader{typ: typ, uuid: uuid, headerSize: headerSize, dataSize: -1, terminal: true}, false, nil
	}

	dataSize := totalSize - headerSize
	if dataSize < 0 {
		return nil, false, errs.New(op, "isobmff", errs.ErrInvalidSource)
	}
	return &boxHeader{typ: typ, uuid: uuid, headerSize: headerSize, dataSize: dataSize}, false, nil
}

func (h *boxHeader) isTagBox() bool {
	return h.typ == "uuid" && h.uuid == tagUUID
}

// writeBoxHeader writes a box header for a box whose body is bodySize bytes,
// using the short (32-bit) size form if the whole box fits, otherwise the
// long (64-bit, size field 1) form.
func writeBoxHeader(op string, sink streamio.Sink, typ string, uuid *[16]byte, bodySize int64) error {
	baseHeaderSize := int64(8)
	if uuid != nil {
		baseHeaderSize += 16
	}

	shortTotal := baseHeaderSize + bodySize
	if shortTotal <= 0xFFFFFFFF {
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[0:4], uint32(shortTotal))
		copy(buf[4:8], typ)
		if _, err := sink.Write(buf[:]); err != nil {
			return errs.Wrap(op, "isobmff", errs.ErrIO, err)
		}
	} else {
		longTotal := baseHeaderSize + 8 + bodySize
		var buf [16]byte
		binary.BigEndian.PutUint32(buf[0:4], 1)
		copy(buf[4:8], typ)
		binary.BigEndian.PutUint64(buf[8:16], uint64(longTotal))
		if _, err := sink.Write(buf[:]); err != nil {
			return errs.Wrap(op, "isobmff", errs.ErrIO, err)
		}
	}
	if uuid != nil {
		if _, err := sink.Write(uuid[:]); err != nil {
			return errs.Wrap(op, "isobmff", errs.ErrIO, err)
		}
	}
	return nil
}

// ReadTags scans an ISO-BMFF container's top-level boxes for the MEMEDB uuid
// box and decodes its body. It returns an empty set, not an error, if no
// such box exists before EOF or before a size-0 terminal box.
func ReadTags(src streamio.Source) (tagcodec.Set, error) {
	const op = "isobmff.ReadTags"

	for {
		hdr, eof, err := readBoxHeader(op, src)
		if err != nil {
			return nil, err
		}
		if eof || hdr.terminal {
			return tagcodec.NewSet(), nil
		}

		if hdr.isTagBox() {
			body, err := streamio.ReadHeap(op, "isobmff", src, int(hdr.dataSize))
			if err != nil {
				return nil, err
			}
			return tagcodec.DecodeTags(op, "isobmff", bytes.NewReader(body))
		}

		if err := streamio.Skip(op, "isobmff", src, hdr.dataSize); err != nil {
			return nil, err
		}
	}
}

// WriteTags copies src to sink, replacing any existing MEMEDB uuid box with
// one encoding tags (or omitting it entirely if tags is empty). The new box
// is always appended after every other top-level box, per the format's lack
// of any ordering requirement on foreign boxes.
func WriteTags(src streamio.Source, sink streamio.Sink, tags tagcodec.Set) error {
	const op = "isobmff.WriteTags"

	for {
		hdr, eof, err := readBoxHeader(op, src)
		if err != nil {
			return err
		}
		if eof {
			break
		}

		if hdr.terminal {
			if err := rewriteTerminalBox(op, src, sink, hdr); err != nil {
				return err
			}
			break
		}

		if hdr.isTagBox() {
			if err := streamio.Skip(op, "isobmff", src, hdr.dataSize); err != nil {
				return err
			}
			continue
		}

		if err := passthroughBox(op, src, sink, hdr); err != nil {
			return err
		}
	}

	if len(tags) == 0 {
		return nil
	}

	var payload bytes.Buffer
	if err := tagcodec.EncodeTags(op, "isobmff", &payload, tags); err != nil {
		return err
	}
	if err := writeBoxHeader(op, sink, "uuid", &tagUUID, int64(payload.Len())); err != nil {
		return err
	}
	if _, err := sink.Write(payload.Bytes()); err != nil {
		return errs.Wrap(op, "isobmff", errs.ErrIO, err)
	}
	return nil
}

// passthroughBox re-emits a box header exactly as declared and copies its
// body unchanged.
func passthroughBox(op string, src streamio.Source, sink streamio.Sink, hdr *boxHeader) error {
	var uuidPtr *[16]byte
	if hdr.typ == "uuid" {
		uuidPtr = &hdr.uuid
	}
	if hdr.headerSize == 16 || hdr.headerSize == 32 {
		// Declared with the 64-bit size field: keep that form.
		var buf [16]byte
		binary.BigEndian.PutUint32(buf[0:4], 1)
		copy(buf[4:8], hdr.typ)
		binary.BigEndian.PutUint64(buf[8:16], uint64(hdr.headerSize+hdr.dataSize))
		if _, err := sink.Write(buf[:]); err != nil {
			return errs.Wrap(op, "isobmff", errs.ErrIO, err)
		}
		if uuidPtr != nil {
			if _, err := sink.Write(uuidPtr[:]); err != nil {
				return errs.Wrap(op, "isobmff", errs.ErrIO, err)
			}
		}
		return streamio.Passthrough(op, "isobmff", sink, src, hdr.dataSize)
	}
	if err := writeBoxHeader(op, sink, hdr.typ, uuidPtr, hdr.dataSize); err != nil {
		return err
	}
	return streamio.Passthrough(op, "isobmff", sink, src, hdr.dataSize)
}

// rewriteTerminalBox converts a size-0 "rest of file" box into one with an
// explicit size computed from the source's remaining length, then copies its
// body through unchanged.
func rewriteTerminalBox(op string, src streamio.Source, sink streamio.Sink, hdr *boxHeader) error {
	curPos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.Wrap(op, "isobmff", errs.ErrIO, err)
	}
	fileLength, err := streamio.SeekEnd(op, "isobmff", src)
	if err != nil {
		return err
	}
	bodyBytes := fileLength - curPos

	var uuidPtr *[16]byte
	if hdr.typ == "uuid" {
		uuidPtr = &hdr.uuid
	}

	if err := writeBoxHeader(op, sink, hdr.typ, uuidPtr, bodyBytes); err != nil {
		return err
	}
	return streamio.Passthrough(op, "isobmff", sink, src, bodyBytes)
}
