// Package riff implements tag read/write for the RIFF container (WebP,
// AVI, WAV, and other FourCC-tagged RIFF variants).
//
// A RIFF file is a 12-byte header ("RIFF", a 4-byte little-endian length of
// everything that follows, and a 4-byte form identifier) followed by a
// sequence of sub-chunks, each a 4-byte FourCC, a 4-byte little-endian body
// length, the body, and one pad byte if the body length is odd. This
// package owns one sub-chunk with FourCC "meme" whose body is a tagcodec
// payload. Because the header's length field must be known before it can be
// written, writing buffers every non-tag sub-chunk in memory before
// emitting the header.
package riff
