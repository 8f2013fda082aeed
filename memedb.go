// Package memedb reads and writes tag sets embedded inside GIF, ISO-BMFF,
// JPEG, PNG, and RIFF container files without disturbing any other content.
// Every other byte in the container is preserved exactly; only the single
// format-specific tag region the library owns is added, replaced, or
// removed.
//
// IdentifyFormat, ReadTags, and WriteTags are the library's public surface.
// Each format also has its own package under formats/ for callers who need
// a write-time placement option (formats/gif, formats/jpeg) that this
// root API doesn't expose.
package memedb

import (
	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/format"
	"github.com/arguablykomodo/memedb-core/formats/gif"
	"github.com/arguablykomodo/memedb-core/formats/isobmff"
	"github.com/arguablykomodo/memedb-core/formats/jpeg"
	"github.com/arguablykomodo/memedb-core/formats/png"
	"github.com/arguablykomodo/memedb-core/formats/riff"
	"github.com/arguablykomodo/memedb-core/streamio"
	"github.com/arguablykomodo/memedb-core/tagcodec"
)

// Set is a tag set: a deduplicated collection of UTF-8 strings, each
// non-empty and at most tagcodec.MaxTagBytes bytes long.
type Set = tagcodec.Set

// NewSet builds a Set from individual tags, deduplicating as it goes.
func NewSet(tags ...string) Set {
	return tagcodec.NewSet(tags...)
}

// IdentifyFormat reads the minimal prefix of source needed to recognise its
// container format. ok is false if the format isn't one of the five this
// library knows.
func IdentifyFormat(source streamio.Source) (kind format.Kind, ok bool, err error) {
	return format.Identify(source)
}

// ReadTags identifies source's format and decodes its tag region. ok is
// false if the format is unrecognised; a recognised format with no tag
// region returns an empty, non-nil Set and ok == true.
func ReadTags(source streamio.Source) (tags Set, ok bool, err error) {
	const op = "memedb.ReadTags"

	kind, ok, err := format.Identify(source)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if err := streamio.Rewind(op, "", source); err != nil {
		return nil, false, err
	}

	switch kind {
	case format.GIF:
		tags, err = gif.ReadTags(source)
	case format.ISOBMFF:
		tags, err = isobmff.ReadTags(source)
	case format.JPEG:
		tags, err = jpeg.ReadTags(source)
	case format.PNG:
		tags, err = png.ReadTags(source)
	case format.RIFF:
		tags, err = riff.ReadTags(source)
	default:
		return nil, false, errs.New(op, "", errs.ErrInvalidSource)
	}
	if err != nil {
		return nil, false, err
	}
	return tags, true, nil
}

// WriteTags identifies source's format and copies it to sink, replacing the
// format's tag region with tags (or removing it, if tags is empty). ok is
// false if the format is unrecognised; nothing is written to sink in that
// case. On error, sink may already hold partial output.
func WriteTags(source streamio.Source, sink streamio.Sink, tags Set) (ok bool, err error) {
	const op = "memedb.WriteTags"

	kind, ok, err := format.Identify(source)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := streamio.Rewind(op, "", source); err != nil {
		return false, err
	}

	switch kind {
	case format.GIF:
		err = gif.WriteTags(source, sink, tags)
	case format.ISOBMFF:
		err = isobmff.WriteTags(source, sink, tags)
	case format.JPEG:
		err = jpeg.WriteTags(source, sink, tags)
	case format.PNG:
		err = png.WriteTags(source, sink, tags)
	case format.RIFF:
		err = riff.WriteTags(source, sink, tags)
	default:
		return false, errs.New(op, "", errs.ErrInvalidSource)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
