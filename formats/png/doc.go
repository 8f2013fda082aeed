// Package png implements tag read/write for the PNG container.
//
// A PNG file is an 8-byte magic followed by a sequence of length-prefixed,
// type-tagged, CRC-32-protected chunks running from IHDR to IEND. This
// package owns a single ancillary chunk type, "meMe", whose data is a
// tagcodec payload and whose CRC-32 (IEEE 802.3 / "ISO-HDLC" polynomial,
// the same one hash/crc32's IEEE table implements) covers the type and
// data. Every other chunk is passed through byte-for-byte.
package png
