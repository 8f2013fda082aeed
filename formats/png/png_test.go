package png

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/arguablykomodo/memedb-core/errs"
	"github.com/arguablykomodo/memedb-core/tagcodec"
	"github.com/stretchr/testify/require"
)

func chunk(typ string, data []byte) []byte {
	var buf bytes.Buffer
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(data)))
	copy(hdr[4:8], typ)
	buf.Write(hdr[:])
	buf.Write(data)

	h := crc32.NewIEEE()
	_, _ = h.Write([]byte(typ))
	_, _ = h.Write(data)
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], h.Sum32())
	buf.Write(crc[:])
	return buf.Bytes()
}

func minimalPNG() []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(chunk("IHDR", make([]byte, 13)))
	buf.Write(chunk("IEND", nil))
	return buf.Bytes()
}

func TestReadTagsNoChunk(t *testing.T) {
	tags, err := ReadTags(bytes.NewReader(minimalPNG()))
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestWriteTagsThenReadBack(t *testing.T) {
	want := tagcodec.NewSet("cat", "meme")
	var out bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalPNG()), &out, want))

	got, err := ReadTags(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.True(t, want.Equal(got))
}

func TestWriteTagsEmptyOmitsChunk(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalPNG()), &out, tagcodec.NewSet()))
	require.NotContains(t, out.String(), chunkType)

	got, err := ReadTags(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWriteTagsReplacesExisting(t *testing.T) {
	var first bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(minimalPNG()), &first, tagcodec.NewSet("old")))

	want := tagcodec.NewSet("new")
	var second bytes.Buffer
	require.NoError(t, WriteTags(bytes.NewReader(first.Bytes()), &second, want))

	got, err := ReadTags(bytes.NewReader(second.Bytes()))
	require.NoError(t, err)
	require.True(t, want.Equal(got))
	require.Equal(t, 1, bytes.Count(second.Bytes(), []byte(chunkType)))
}

func TestReadTagsRejectsBadChecksum(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(chunk("IHDR", make([]byte, 13)))

	var payload bytes.Buffer
	require.NoError(t, tagcodec.EncodeTags("op", "png", &payload, tagcodec.NewSet("x")))
	tagChunk := chunk(chunkType, payload.Bytes())
	tagChunk[len(tagChunk)-1] ^= 0xFF // corrupt the CRC
	buf.Write(tagChunk)
	buf.Write(chunk("IEND", nil))

	_, err := ReadTags(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrPNGChecksum)
}

func FuzzReadTags(f *testing.F) {
	f.Add(minimalPNG())
	var withTags bytes.Buffer
	_ = WriteTags(bytes.NewReader(minimalPNG()), &withTags, tagcodec.NewSet("cat", "meme"))
	f.Add(withTags.Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		require.NotPanics(t, func() {
			_, _ = ReadTags(bytes.NewReader(data))
		})
	})
}

func FuzzWriteTags(f *testing.F) {
	f.Add(minimalPNG(), "cat")
	f.Add(minimalPNG(), "")

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

func TestReadTagsRejectsMissingIEND(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(chunk("IHDR", make([]byte, 13)))

	_, err := ReadTags(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrInvalidSource)
}
