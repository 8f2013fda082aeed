package jpeg

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/tagcodec"
	"github.com/stretchr/testify/require"
)

// minimalJPEG builds SOI, an APP0 JFIF segment, a tiny entropy-coded scan
// containing a stuffed 0xFF 0x00 byte and a restart marker, and EOI.
func minimalJPEG() []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0xFF, markerAPP0, 0x00, 0x06, 'J', 'F', 'I', 'F'})
	buf.Write([]byte{0xFF, 0xDA, 0x00, 0x02}) // SOS, empty header
	buf.Write([]byte{0x12, 0xFF, 0x00, 0x34, 0xFF, 0xD0, 0x56})
	buf.Write([]byte{0xFF, markerEOI})
	return buf.Bytes()
}

func TestReadTagsNoSegment(t *testing.T) {
	tags, err := ReadTags(bytes.NewReader(minimalJPEG()))
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestWriteTagsThenReadBack(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		var opts []Option
		if legacy {
			opts = append(opts, WithLegacyPlacement())
		}

		want := tagcodec.NewSet("cat", "meme")
		var out bytes.Buffer
		require.NoError(t, WriteTags(bytes.NewReader(minimalJPEG()), &out, want, opts...))

		got, err := ReadTags(bytes.NewReader(out.Bytes()))
		require.NoError(t, err)
		require.True(t, want.Equal(got))
	}
}

func TestWriteTagsPreservesEntropyData(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalJPEG()), &out, tagcodec.NewSet("x")))
	require.Contains(t, out.Bytes(), []byte{0x12, 0xFF, 0x00, 0x34, 0xFF, 0xD0, 0x56})
}

func TestWriteTagsEmptyOmitsSegment(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalJPEG()), &out, tagcodec.NewSet()))
	require.NotContains(t, out.String(), appIdentifier)

	got, err := ReadTags(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWriteTagsReplacesExisting(t *testing.T) {
	var first bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalJPEG()), &first, tagcodec.NewSet("old")))

	want := tagcodec.NewSet("new")
	var second bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(first.Bytes()), &second, want))

	got, err := ReadTags(bytes.NewReader(second.Bytes()))
	require.NoError(t, err)
	require.True(t, want.Equal(got))
	require.Equal(t, 1, bytes.Count(second.Bytes(), []byte(appIdentifier)))
}

func TestReadTagsRejectsSegmentLengthUnderflow(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0xFF, 0xE1, 0x00, 0x01}) // length 1 < 2
	_, err := ReadTags(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrInvalidSource)
}

func TestReadTagsRejectsStrayZeroAfterPad(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0xFF, 0xFF, 0x00}) // pad run followed by a stray 0x00, not a marker
	_, err := ReadTags(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrInvalidSource)
}

func FuzzReadTags(f *testing.F) {
	f.Add(minimalJPEG())
	var withTags bytes.Buffer
	_ = WriteTags(bytes.NewReader(minimalJPEG()), &withTags, tagcodec.NewSet("cat", "meme"))
	f.Add(withTags.Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		require.NotPanics(t, func() {
			_, _ = ReadTags(bytes.NewReader(data))
		})
	})
}

func FuzzWriteTags(f *testing.F) {
	f.Add(minimalJPEG(), "cat")
	f.Add(minimalJPEG(), "")

	f.Fuzz(func(t *testing.T, data []byte, tag string) {
		tags := tagcodec.NewSet()
		if tag != "" {
			tags = tagcodec.NewSet(tag)
		}
		require.NotPanics(t, func() {
			var out bytes.Buffer
			_ = WriteTags(bytes.NewReader(data), &out, tags)
		})
	})
}

func TestWriteTagsRejectsOversizedPayload(t *testing.T) {
	huge := tagcodec.NewSet()
	for i := 0; i < 400; i++ {
		huge[fmt.Sprintf("%03d-%s", i, strings.Repeat("x", 250))] = struct{}{}
	}
	var out bytes.Buffer
	err := WriteTags(bytes.NewReader(minimalJPEG()), &out, huge)
	require.ErrorIs(t, err, errs.ErrChunkSizeOverflow)
}
