// Package jpeg implements tag read/write for the JPEG container.
//
// A JPEG file runs from SOI (0xFFD8) to EOI (0xFFD9). In between, one or
// more 0xFF pad bytes followed by a non-0xFF, non-0x00 byte introduce a
// marker: a standalone marker has no body, a marker-segment's body is
// prefixed by a 2-byte big-endian length (inclusive of the length field
// itself), and an entropy-coded segment (start-of-scan or a restart marker)
// is raw coded data in which a literal 0xFF byte is stuffed as 0xFF 0x00,
// ending at the next real marker. This package owns one APP4 (0xFFE4)
// marker segment whose body begins with the 7-byte identifier
// "MemeDB\x00"; the remainder of the body is a tagcodec payload. Every
// other marker and its body, and every entropy-coded region, is passed
// through byte-for-byte.
package jpeg
