package jpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/internal/options"
	"github.com/arguablykomodo/memedb-core/streamio"
	"github.com/arguablykomodo/memedb-core/tagcodec"
)

// markerNames gives a handful of common markers a readable name for error
// messages; markers missing from the table fall back to their hex value.
var markerNames = map[byte]string{
	0xD8: "SOI", 0xD9: "EOI", 0xDA: "SOS", 0xC4: "DHT", 0xDB: "DQT",
	0xDD: "DRI", 0xFE: "COM", 0xE0: "APP0", 0xE1: "APP1", 0xE2: "APP2",
	0xE3: "APP3", 0xE4: "APP4", 0xC0: "SOF0", 0xC2: "SOF2",
}

// markerName returns a human-readable name for marker, falling back to its
// hex value for markers the table doesn't name.
func markerName(marker byte) string {
	if name, ok := markerNames[marker]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", marker)
}

// Magic is the SOI marker every JPEG starts with.
var Magic = [2]byte{0xFF, 0xD8}

// appIdentifier is the 7-byte identifier this package owns inside an APP4
// marker segment's body.
const appIdentifier = "MemeDB\x00"

const (
	markerEOI  = 0xD9
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPP4 = 0xE4
	markerSOS  = 0xDA
	markerTEM  = 0x01
)

// maxSegmentPayload is the largest tagcodec payload that fits in an APP4
// segment: the 2-byte length field (inclusive of itself) tops out at
// 0xFFFF, minus 2 for the length field and 7 for the identifier.
const maxSegmentPayload = 0xFFFF - 2 - 7

// Option configures WriteTags.
type Option = options.Option[*writeConfig]

type writeConfig struct {
	legacyPlacement bool
}

// WithLegacyPlacement reproduces the older generation's byte layout, which
// inserted the tag segment immediately before the first marker of any kind
// instead of immediately after the leading APP0/APP1 identification
// segments. Both placements are legal and round-trip identically.
func WithLegacyPlacement() Option {
	return options.NoError[*writeConfig](func(c *writeConfig) {
		c.legacyPlacement = true
	})
}

// ReadTags scans a JPEG container for the MemeDB APP4 marker segment and
// decodes its payload. It returns an empty set, not an error, if no such
// segment exists before EOI.
func ReadTags(src streamio.Source) (tagcodec.Set, error) {
	const op = "jpeg.ReadTags"

	var soi [2]byte
	if err := streamio.ReadFixed(op, "jpeg", src, soi[:]); err != nil {
		return nil, err
	}

	_, marker, err := readMarker(op, src)
	if err != nil {
		return nil, err
	}

	for {
		if marker == markerEOI {
			return tagcodec.NewSet(), nil
		}

		if isStandalone(marker) {
			// A restart marker reaching here rather than scanEntropyData's
			// isRestart branch would mean it appeared outside any scan,
			// which well-formed JPEGs never do; treated like TEM otherwise.
			_, marker, err = readMarker(op, src)
			if err != nil {
				return nil, err
			}
			continue
		}

		body, err := readSegmentBody(op, src, marker)
		if err != nil {
			return nil, err
		}

		if marker == markerAPP4 && len(body) >= len(appIdentifier) && string(body[:len(appIdentifier)]) == appIdentifier {
			return tagcodec.DecodeTags(op, "jpeg", bytes.NewReader(body[len(appIdentifier):]))
		}

		if marker == markerSOS {
			marker, err = scanEntropyData(op, src, nil)
			if err != nil {
				return nil, err
			}
			continue
		}

		_, marker, err = readMarker(op, src)
		if err != nil {
			return nil, err
		}
	}
}

// WriteTags copies src to sink, replacing any existing MemeDB APP4 segment
// with one encoding tags (or omitting it entirely if tags is empty). By
// default the new segment is inserted immediately after any leading
// APP0/APP1 segments; WithLegacyPlacement inserts it before the first
// marker of any kind instead.
func WriteTags(src streamio.Source, sink streamio.Sink, tags tagcodec.Set, opts ...Option) error {
	const op = "jpeg.WriteTags"

	cfg := &writeConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return err
	}

	var soi [2]byte
	if err := streamio.ReadFixed(op, "jpeg", src, soi[:]); err != nil {
		return err
	}
	if _, err := sink.Write(soi[:]); err != nil {
		return errs.Wrap(op, "jpeg", errs.ErrIO, err)
	}

	inserted := len(tags) == 0
	if !inserted && cfg.legacyPlacement {
		if err := writeTagSegment(op, sink, tags); err != nil {
			return err
		}
		inserted = true
	}

	pad, marker, err := readMarker(op, src)
	if err != nil {
		return err
	}

	for {
		if !inserted && marker != markerAPP0 && marker != markerAPP1 {
			if err := writeTagSegment(op, sink, tags); err != nil {
				return err
			}
			inserted = true
		}

		if marker == markerEOI {
			if err := writePad(op, sink, pad, marker); err != nil {
				return err
			}
			return nil
		}

		if isStandalone(marker) {
			// Same assumption as ReadTags: a restart marker only ever
			// reaches this branch if it appeared outside any entropy scan.
			if err := writePad(op, sink, pad, marker); err != nil {
				return err
			}
			pad, marker, err = readMarker(op, src)
			if err != nil {
				return err
			}
			continue
		}

		body, err := readSegmentBody(op, src, marker)
		if err != nil {
			return err
		}

		if marker == markerAPP4 && len(body) >= len(appIdentifier) && string(body[:len(appIdentifier)]) == appIdentifier {
			// Drop the existing tag segment entirely.
			pad, marker, err = readMarker(op, src)
			if err != nil {
				return err
			}
			continue
		}

		if err := writePad(op, sink, pad, marker); err != nil {
			return err
		}
		if err := writeSegment(op, sink, body); err != nil {
			return err
		}

		if marker == markerSOS {
			marker, err = scanEntropyData(op, src, func(b byte) { _, _ = sink.Write([]byte{b}) })
			if err != nil {
				return err
			}
			pad = 1
			continue
		}

		pad, marker, err = readMarker(op, src)
		if err != nil {
			return err
		}
	}
}

// readMarker reads one or more 0xFF pad bytes followed by the byte
// identifying a marker, returning how many pad bytes preceded it.
func readMarker(op string, src streamio.Source) (pad int, marker byte, err error) {
	b, err := streamio.ReadByte(op, "jpeg", src)
	if err != nil {
		return 0, 0, err
	}
	if b != 0xFF {
		return 0, 0, errs.New(op, "jpeg", errs.ErrInvalidSource)
	}
	pad = 1
	for {
		b, err = streamio.ReadByte(op, "jpeg", src)
		if err != nil {
			return 0, 0, err
		}
		if b == 0xFF {
			pad++
			continue
		}
		if b == 0x00 {
			return 0, 0, errs.New(op, "jpeg", errs.ErrInvalidSource)
		}
		return pad, b, nil
	}
}

// writePad writes pad 0xFF bytes followed by marker.
func writePad(op string, sink streamio.Sink, pad int, marker byte) error {
	buf := make([]byte, pad+1)
	for i := 0; i < pad; i++ {
		buf[i] = 0xFF
	}
	buf[pad] = marker
	if _, err := sink.Write(buf); err != nil {
		return errs.Wrap(op, "jpeg", errs.ErrIO, err)
	}
	return nil
}

// readSegmentBody reads a marker segment's 2-byte big-endian length
// (inclusive of itself) and returns the remaining body bytes.
func readSegmentBody(op string, src streamio.Source, marker byte) ([]byte, error) {
	var lenBuf [2]byte
	if err := streamio.ReadFixed(op, "jpeg", src, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	if length < 2 {
		return nil, errs.Wrap(op, "jpeg", errs.ErrInvalidSource,
			fmt.Errorf("%s segment length %d is smaller than the length field itself", markerName(marker), length))
	}
	return streamio.ReadHeap(op, "jpeg", src, int(length)-2)
}

// writeSegment writes a marker segment's 2-byte length field and body.
func writeSegment(op string, sink streamio.Sink, body []byte) error {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)+2))
	if _, err := sink.Write(lenBuf[:]); err != nil {
		return errs.Wrap(op, "jpeg", errs.ErrIO, err)
	}
	if _, err := sink.Write(body); err != nil {
		return errs.Wrap(op, "jpeg", errs.ErrIO, err)
	}
	return nil
}

// writeTagSegment builds and writes a full APP4 MemeDB segment encoding
// tags.
func writeTagSegment(op string, sink streamio.Sink, tags tagcodec.Set) error {
	var payload bytes.Buffer
	payload.WriteString(appIdentifier)
	if err := tagcodec.EncodeTags(op, "jpeg", &payload, tags); err != nil {
		return err
	}
	if payload.Len()-len(appIdentifier) > maxSegmentPayload {
		return errs.New(op, "jpeg", errs.ErrChunkSizeOverflow)
	}
	if _, err := sink.Write([]byte{0xFF, markerAPP4}); err != nil {
		return errs.Wrap(op, "jpeg", errs.ErrIO, err)
	}
	return writeSegment(op, sink, payload.Bytes())
}

// isStandalone reports whether marker has no length-prefixed body: SOI,
// TEM, and the eight restart markers.
func isStandalone(marker byte) bool {
	if marker == markerTEM || marker == 0xD8 {
		return true
	}
	return marker >= 0xD0 && marker <= 0xD7
}

// isRestart reports whether marker is one of the eight restart markers,
// which appear inside entropy-coded data without ending the scan.
func isRestart(marker byte) bool {
	return marker >= 0xD0 && marker <= 0xD7
}

// scanEntropyData consumes entropy-coded scan data byte by byte, treating
// 0xFF 0x00 pairs and restart markers as scan data, until it finds the
// single 0xFF that introduces the next real marker. consume, if non-nil,
// receives every byte that belongs to the scan exactly as it appears in the
// source (stuffed 0xFF 0x00 pairs and restart marker pairs included, nothing
// unstuffed); it is nil when the caller
// only needs the next marker, not the bytes. The returned marker's own
// introducing 0xFF is not passed to consume — the caller is responsible for
// emitting it.
func scanEntropyData(op string, src streamio.Source, consume func(byte)) (marker byte, err error) {
	emit := consume
	if emit == nil {
		emit = func(byte) {}
	}

	pendingFF := false
	for {
		b, err := streamio.ReadByte(op, "jpeg", src)
		if err != nil {
			return 0, err
		}

		if !pendingFF {
			if b == 0xFF {
				pendingFF = true
				continue
			}
			emit(b)
			continue
		}

		switch {
		case b == 0x00:
			emit(0xFF)
			emit(0x00)
			pendingFF = false
		case b == 0xFF:
			emit(0xFF)
			// pendingFF stays true; b becomes the new candidate marker byte.
		case isRestart(b):
			emit(0xFF)
			emit(b)
			pendingFF = false
		default:
			return b, nil
		}
	}
}
