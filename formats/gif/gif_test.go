package gif

import (
	"bytes"
	"testing"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/tagcodec"
	"github.com/stretchr/testify/require"
)

// minimalGIF builds a well-formed, tagless GIF89a: magic, a 7-byte Logical
// Screen Descriptor with no Global Color Table, a single transparent image
// block with no Local Color Table, and a trailer.
func minimalGIF() []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}) // LSD, no GCT
	buf.Write([]byte{blockImage})
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0}) // image descriptor, no LCT
	buf.Write([]byte{0x02})                      // LZW min code size
	buf.Write([]byte{0x00})                      // empty sub-block run
	buf.Write([]byte{blockTrailer})
	return buf.Bytes()
}

func TestReadTagsNoExtension(t *testing.T) {
	tags, err := ReadTags(bytes.NewReader(minimalGIF()))
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
		require.NoError(t, WriteTags(bytes.NewReader(minimalGIF()), &out, want, opts...))

		got, err := ReadTags(bytes.NewReader(out.Bytes()))
		require.NoError(t, err)
		require.True(t, want.Equal(got))
	}
}

func TestWriteTagsEmptyOmitsExtension(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalGIF()), &out, tagcodec.NewSet()))
	require.NotContains(t, out.String(), appIdentifier)

	got, err := ReadTags(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWriteTagsReplacesExisting(t *testing.T) {
	var first bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalGIF()), &first, tagcodec.NewSet("old")))

	want := tagcodec.NewSet("new", "tags")
	var second bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(first.Bytes()), &second, want))

	got, err := ReadTags(bytes.NewReader(second.Bytes()))
	require.NoError(t, err)
	require.True(t, want.Equal(got))
	require.Equal(t, 1, bytes.Count(second.Bytes(), []byte(appIdentifier)))
}

func TestReadTagsRejectsBadAppIdentifierLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00})
	buf.Write([]byte{blockExtension, labelApplication, 5}) // wrong length, must be 11
	buf.Write([]byte("short"))
	buf.Write([]byte{0x00})
	buf.Write([]byte{blockTrailer})

	_, err := ReadTags(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrInvalidSource)
}

func TestReadTagsUnknownIntroducerErrors(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00})
	buf.Write([]byte{0xAB}) // not a valid block introducer

	_, err := ReadTags(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrInvalidSource)
}

func FuzzReadTags(f *testing.F) {
	f.Add(minimalGIF())
	var withTags bytes.Buffer
	_ = WriteTags(bytes.NewReader(minimalGIF()), &withTags, tagcodec.NewSet("cat", "meme"))
	f.Add(withTags.Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		require.NotPanics(t, func() {
			_, _ = ReadTags(bytes.NewReader(data))
		})
	})
}

func FuzzWriteTags(f *testing.F) {
	f.Add(minimalGIF(), "cat")
	f.Add(minimalGIF(), "")

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

func TestWriteTagsPassesThroughOtherExtensions(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00})
	buf.Write([]byte{blockExtension, 0xF9, 4, 0, 0, 0, 0, 0x00}) // graphic control extension
	buf.Write([]byte{blockTrailer})

	var out bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(buf.Bytes()), &out, tagcodec.NewSet("x")))
	require.Contains(t, out.String(), "\x21\xf9")

	got, err := ReadTags(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.True(t, tagcodec.NewSet("x").Equal(got))
}
