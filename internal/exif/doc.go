// Package exif decodes embedded image tags (EXIF and IPTC) and resolves
// them into normalized values: position, altitude, direction, GPS time,
// capture time with the zone of the capture position, and orientation.
//
// Decoding never fails on bad image data; a file whose tags cannot be read
// simply has no tags. Individual malformed tags are reported by the
// resolvers as ErrMalformedTag and dropped by Resolve.
package exif
