package gif

import (
	"bytes"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/internal/options"
	"github.com/arguablykomodo/memedb-core/streamio"
	"github.com/arguablykomodo/memedb-core/tagcodec"
)

// Magic is the 6-byte GIF89a signature.
var Magic = [6]byte{'G', 'I', 'F', '8', '9', 'a'}

// appIdentifier is the 11-byte Application Identifier + Authentication Code
// this package owns inside an Application Extension (0x21 0xFF).
const appIdentifier = "MEMETAGS1.0"

const (
	blockExtension = 0x21
	blockImage     = 0x2C
	blockTrailer   = 0x3B

	labelApplication = 0xFF
)

// writeConfig holds the write-time placement choice.
type writeConfig struct {
	legacyPlacement bool
}

// Option configures WriteTags.
type Option = options.Option[*writeConfig]

// WithLegacyPlacement reproduces the older generation's byte layout, which
// placed the tag extension immediately before the trailer instead of
// immediately after the Global Color Table. Both placements are legal and
// round-trip identically; this exists only to match an older writer's exact
// output byte-for-byte.
func WithLegacyPlacement() Option {
	return options.NoError[*writeConfig](func(c *writeConfig) {
		c.legacyPlacement = true
	})
}

// ReadTags scans a GIF container for the MEMETAGS1.0 Application Extension
// and decodes its sub-block payload. It returns an empty set, not an error,
// if no such extension exists before the trailer.
func ReadTags(src streamio.Source) (tagcodec.Set, error) {
	const op = "gif.ReadTags"

	var magic [6]byte
	if err := streamio.ReadFixed(op, "gif", src, magic[:]); err != nil {
		return nil, err
	}

	gctSize, err := skipLogicalScreenDescriptor(op, src)
	if err != nil {
		return nil, err
	}
	if gctSize > 0 {
		if err := streamio.Skip(op, "gif", src, int64(gctSize)); err != nil {
			return nil, err
		}
	}

	for {
		introducer, err := streamio.ReadByte(op, "gif", src)
		if err != nil {
			return nil, err
		}

		switch introducer {
		case blockExtension:
			label, err := streamio.ReadByte(op, "gif", src)
			if err != nil {
				return nil, err
			}
			if label != labelApplication {
				if err := skipSubBlockRun(op, src); err != nil {
					return nil, err
				}
				continue
			}

			id, err := readAppIdentifier(op, src)
			if err != nil {
				return nil, err
			}
			if string(id[:]) != appIdentifier {
				if err := skipSubBlockRun(op, src); err != nil {
					return nil, err
				}
				continue
			}

			payload, err := readSubBlockRun(op, src)
			if err != nil {
				return nil, err
			}
			return tagcodec.DecodeTags(op, "gif", bytes.NewReader(payload))

		case blockImage:
			if err := skipImageDescriptor(op, src); err != nil {
				return nil, err
			}

		case blockTrailer:
			return tagcodec.NewSet(), nil

		default:
			return nil, errs.New(op, "gif", errs.ErrInvalidSource)
		}
	}
}

// WriteTags copies src to sink, replacing any existing MEMETAGS1.0
// Application Extension with one encoding tags (or omitting it entirely if
// tags is empty). By default the new extension is placed immediately after
// the Global Color Table; WithLegacyPlacement moves it to immediately before
// the trailer.
func WriteTags(src streamio.Source, sink streamio.Sink, tags tagcodec.Set, opts ...Option) error {
	const op = "gif.WriteTags"

	cfg := &writeConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return err
	}

	var magic [6]byte
	if err := streamio.ReadFixed(op, "gif", src, magic[:]); err != nil {
		return err
	}
	if _, err := sink.Write(magic[:]); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}

	var lsd [7]byte
	if err := streamio.ReadFixed(op, "gif", src, lsd[:]); err != nil {
		return err
	}
	if _, err := sink.Write(lsd[:]); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}
	if gctFlag(lsd[4]) {
		n := int64(gctByteSize(lsd[4]))
		if err := streamio.Passthrough(op, "gif", sink, src, n); err != nil {
			return err
		}
	}

	if len(tags) > 0 && !cfg.legacyPlacement {
		if err := writeTagExtension(op, sink, tags); err != nil {
			return err
		}
	}

	for {
		introducer, err := streamio.ReadByte(op, "gif", src)
		if err != nil {
			return err
		}

		switch introducer {
		case blockExtension:
			label, err := streamio.ReadByte(op, "gif", src)
			if err != nil {
				return err
			}
			if label != labelApplication {
				if _, err := sink.Write([]byte{introducer, label}); err != nil {
					return errs.Wrap(op, "gif", errs.ErrIO, err)
				}
				if err := passthroughSubBlockRun(op, src, sink); err != nil {
					return err
				}
				continue
			}

			id, err := readAppIdentifier(op, src)
			if err != nil {
				return err
			}
			if string(id[:]) == appIdentifier {
				// Drop the existing tag extension; nothing written.
				if err := skipSubBlockRun(op, src); err != nil {
					return err
				}
				continue
			}

			if _, err := sink.Write([]byte{introducer, label, byte(len(id))}); err != nil {
				return errs.Wrap(op, "gif", errs.ErrIO, err)
			}
			if _, err := sink.Write(id[:]); err != nil {
				return errs.Wrap(op, "gif", errs.ErrIO, err)
			}
			if err := passthroughSubBlockRun(op, src, sink); err != nil {
				return err
			}

		case blockImage:
			if err := passthroughImageDescriptor(op, src, sink, introducer); err != nil {
				return err
			}

		case blockTrailer:
			if len(tags) > 0 && cfg.legacyPlacement {
				if err := writeTagExtension(op, sink, tags); err != nil {
					return err
				}
			}
			if _, err := sink.Write([]byte{introducer}); err != nil {
				return errs.Wrap(op, "gif", errs.ErrIO, err)
			}
			return nil

		default:
			return errs.New(op, "gif", errs.ErrInvalidSource)
		}
	}
}

// gctFlag reports whether the Logical Screen Descriptor's packed byte
// declares a Global Color Table.
func gctFlag(packed byte) bool {
	return packed&0x80 != 0
}

// gctByteSize returns the Global Color Table's size in bytes, 3*2^(N+1)
// where N is the packed byte's low 3 bits.
func gctByteSize(packed byte) int {
	n := int(packed & 0x07)
	return 3 * (1 << (n + 1))
}

// skipLogicalScreenDescriptor reads the 7-byte LSD and returns the Global
// Color Table's size in bytes (0 if absent).
func skipLogicalScreenDescriptor(op string, src streamio.Source) (int, error) {
	var lsd [7]byte
	if err := streamio.ReadFixed(op, "gif", src, lsd[:]); err != nil {
		return 0, err
	}
	if !gctFlag(lsd[4]) {
		return 0, nil
	}
	return gctByteSize(lsd[4]), nil
}

// readAppIdentifier reads the Application Extension's identifier sub-block,
// which spec requires to carry exactly 11 bytes (8-byte application
// identifier + 3-byte authentication code).
func readAppIdentifier(op string, src streamio.Source) ([11]byte, error) {
	var id [11]byte
	size, err := streamio.ReadByte(op, "gif", src)
	if err != nil {
		return id, err
	}
	if size != 11 {
		return id, errs.New(op, "gif", errs.ErrInvalidSource)
	}
	if err := streamio.ReadFixed(op, "gif", src, id[:]); err != nil {
		return id, err
	}
	return id, nil
}

// skipSubBlockRun discards sub-blocks until the zero-length terminator.
func skipSubBlockRun(op string, src streamio.Source) error {
	for {
		size, err := streamio.ReadByte(op, "gif", src)
		if err != nil {
			return err
		}
		if size == 0 {
			return nil
		}
		if err := streamio.Skip(op, "gif", src, int64(size)); err != nil {
			return err
		}
	}
}

// passthroughSubBlockRun copies sub-blocks through to sink until the
// zero-length terminator, inclusive.
func passthroughSubBlockRun(op string, src streamio.Source, sink streamio.Sink) error {
	for {
		size, err := streamio.ReadByte(op, "gif", src)
		if err != nil {
			return err
		}
		if _, err := sink.Write([]byte{size}); err != nil {
			return errs.Wrap(op, "gif", errs.ErrIO, err)
		}
		if size == 0 {
			return nil
		}
		if err := streamio.Passthrough(op, "gif", sink, src, int64(size)); err != nil {
			return err
		}
	}
}

// readSubBlockRun accumulates sub-blocks into a single payload, stopping at
// the zero-length terminator.
func readSubBlockRun(op string, src streamio.Source) ([]byte, error) {
	var payload []byte
	for {
		size, err := streamio.ReadByte(op, "gif", src)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return payload, nil
		}
		chunk, err := streamio.ReadHeap(op, "gif", src, int(size))
		if err != nil {
			return nil, err
		}
		payload = append(payload, chunk...)
	}
}

// writeTagExtension emits a full Application Extension encoding tags, split
// into as many 255-byte sub-blocks as needed.
func writeTagExtension(op string, sink streamio.Sink, tags tagcodec.Set) error {
	var payload bytes.Buffer
	if err := tagcodec.EncodeTags(op, "gif", &payload, tags); err != nil {
		return err
	}

	if _, err := sink.Write([]byte{blockExtension, labelApplication, 11}); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}
	if _, err := sink.Write([]byte(appIdentifier)); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}

	data := payload.Bytes()
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		if _, err := sink.Write([]byte{byte(n)}); err != nil {
			return errs.Wrap(op, "gif", errs.ErrIO, err)
		}
		if _, err := sink.Write(data[:n]); err != nil {
			return errs.Wrap(op, "gif", errs.ErrIO, err)
		}
		data = data[n:]
	}
	if _, err := sink.Write([]byte{0x00}); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}
	return nil
}

// skipImageDescriptor discards an Image Descriptor block (9 descriptor
// bytes, optional Local Color Table, LZW minimum code size, image data
// sub-blocks). The introducer byte has already been consumed by the caller.
func skipImageDescriptor(op string, src streamio.Source) error {
	var desc [9]byte
	if err := streamio.ReadFixed(op, "gif", src, desc[:]); err != nil {
		return err
	}
	if lctFlag(desc[8]) {
		if err := streamio.Skip(op, "gif", src, int64(lctByteSize(desc[8]))); err != nil {
			return err
		}
	}
	if _, err := streamio.ReadByte(op, "gif", src); err != nil {
		return err
	}
	return skipSubBlockRun(op, src)
}

// passthroughImageDescriptor mirrors skipImageDescriptor but copies bytes to
// sink instead of discarding them. introducer is the 0x2C byte already read
// and not yet written.
func passthroughImageDescriptor(op string, src streamio.Source, sink streamio.Sink, introducer byte) error {
	var desc [9]byte
	if err := streamio.ReadFixed(op, "gif", src, desc[:]); err != nil {
		return err
	}
	if _, err := sink.Write(append([]byte{introducer}, desc[:]...)); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}
	if lctFlag(desc[8]) {
		n := int64(lctByteSize(desc[8]))
		if err := streamio.Passthrough(op, "gif", sink, src, n); err != nil {
			return err
		}
	}
	minCodeSize, err := streamio.ReadByte(op, "gif", src)
	if err != nil {
		return err
	}
	if _, err := sink.Write([]byte{minCodeSize}); err != nil {
		return errs.Wrap(op, "gif", errs.ErrIO, err)
	}
	return passthroughSubBlockRun(op, src, sink)
}

// lctFlag reports whether an Image Descriptor's packed byte declares a
// Local Color Table.
func lctFlag(packed byte) bool {
	return packed&0x80 != 0
}

// lctByteSize returns the Local Color Table's size in bytes, using the same
// 3*2^(N+1) formula as the Global Color Table.
func lctByteSize(packed byte) int {
	n := int(packed & 0x07)
	return 3 * (1 << (n + 1))
}
