// Package metadata turns a source file into a MediaMetadata record.
//
// The MIME type is sniffed from the leading bytes of the file. Audio and
// video candidates go through ffprobe (package probe), images and PDFs
// through the EXIF/IPTC decoder (package exif) plus a header-only dimension
// read, and everything else gets the minimal record: size, modification
// time and MIME type.
//
// Only probe errors escape Resolve. Every other problem downgrades the
// record to the minimal one, so callers always have something to store.
package metadata
