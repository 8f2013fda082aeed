// Package isobmff implements tag read/write for the ISO base media file
// format (the box-structured container behind MP4, MOV, HEIC, and friends).
//
// An ISO-BMFF file is a flat sequence of top-level boxes; this package does
// not recurse into a box's body. Each box header is a 4-byte big-endian size
// (1 selects an 8-byte extended size field, 0 means "extends to end of
// file") and a 4-byte type, extended by a 16-byte real type when the 4-byte
// type reads "uuid". This package owns one top-level uuid box whose UUID is
// 12EBC64D-EA62-47A0-8E92-B9FB3B518C28 and whose body is a tagcodec
// payload. Every other box is passed through byte-for-byte.
package isobmff
