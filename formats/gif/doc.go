// Package gif implements tag read/write for the GIF89a container.
//
// A GIF file is a 6-byte magic, a 7-byte Logical Screen Descriptor with an
// optional Global Color Table, then a sequence of blocks (Extension,
// introduced by 0x21; Image Descriptor, introduced by 0x2C; Trailer, the
// single byte 0x3B) running to end of file. Every extension's payload,
// regardless of its sub-type label, is a run of length-prefixed sub-blocks
// terminated by a zero-length sub-block; this package owns one Application
// Extension whose 11-byte application identifier/authentication code is
// "MEMETAGS1.0" and whose sub-blocks carry a tagcodec payload. Every other
// block is passed through byte-for-byte.
package gif
