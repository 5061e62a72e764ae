// Package mediatypes holds the records produced by the media pipeline and
// consumed by persistence: MediaMetadata for a source file and
// DerivedInstance for every generated artifact.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # File Types
//
// GetFileType maps a sniffed MIME type onto the coarse FileType used to
// pick an extraction branch:
//
//	mediatypes.GetFileType("image/jpeg")      // FileTypeImage
//	mediatypes.GetFileType("application/pdf") // FileTypePDF
//
// Whether a "video/..." container really holds video is decided later by
// probing; the resolver rewrites Type and MimeType when it turns out to be audio.
//
// # Rotation
//
// Rotation values are restricted to 0, 90, 180 and 270 degrees clockwise.
// Use ParseRotation to validate user supplied values.
package mediatypes
