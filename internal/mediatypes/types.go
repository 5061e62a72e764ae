package mediatypes

import (
	"fmt"
	"strings"
	"time"
)

// FileType is the coarse media class of a source file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a file with a real video stream.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents a file with audio but no video stream.
	FileTypeAudio FileType = "audio"
	// FileTypePDF represents a PDF document.
	FileTypePDF FileType = "pdf"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// GetFileType returns the FileType for a (sniffed) MIME type.
func GetFileType(mimeType string) FileType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileTypeAudio
	case mimeType == "application/pdf":
		return FileTypePDF
	default:
		return FileTypeOther
	}
}

// AudioMimeTypes maps lowercase extensions (without dot) to the MIME type
// reported for files classified as audio.
var AudioMimeTypes = map[string]string{
	"amr": "audio/amr",
	"3gp": "audio/3gpp",
	"3ga": "audio/3gpp",
	"m4a": "audio/mp4a-latm",
	"ogg": "audio/ogg",
	"mp3": "audio/mpeg",
}

// Rotation is the number of degrees the source must be rotated clockwise
// to display correctly.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation validates a rotation in degrees.
func ParseRotation(degrees int) (Rotation, error) {
	switch Rotation(degrees) {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return Rotation(degrees), nil
	}
	return Rotate0, fmt.Errorf("unsupported rotation %d (must be 0, 90, 180 or 270)", degrees)
}

// GeoPosition is a WGS84 position in decimal degrees. Altitude is in meters.
type GeoPosition struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// Valid reports whether latitude and longitude are within range.
func (g GeoPosition) Valid() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 && g.Longitude >= -180 && g.Longitude <= 180
}

// DirectionRef tells whether a capture direction is relative to true or magnetic north.
type DirectionRef string

const (
	DirectionTrue     DirectionRef = "T"
	DirectionMagnetic DirectionRef = "M"
)

// Direction is the compass direction the camera was facing.
type Direction struct {
	Degrees float64      `json:"degrees"`
	Ref     DirectionRef `json:"ref,omitempty"`
}

// MediaMetadata is the normalized metadata record for one source file.
// FileSize, ModTime and MimeType are always set; everything else is optional.
type MediaMetadata struct {
	MimeType  string    `json:"mimetype"`
	FileSize  int64     `json:"filesize"`
	ModTime   time.Time `json:"filemtime"`
	Type      FileType  `json:"type"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	Duration  *float64  `json:"duration,omitempty"`
	Bitrate   *int64    `json:"bitrate,omitempty"`
	Framerate *float64  `json:"framerate,omitempty"`

	Geo         *GeoPosition `json:"gps,omitempty"`
	Direction   *Direction   `json:"direction,omitempty"`
	CaptureTime *time.Time   `json:"creation_time,omitempty"`
	GPSTime     *time.Time   `json:"gpstime,omitempty"`
	Rotation    Rotation     `json:"rotate"`

	Title    string   `json:"title,omitempty"`
	Caption  string   `json:"caption,omitempty"`
	Keywords string   `json:"keywords,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	MD5  string `json:"md5,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
}

// EffectiveTime returns the best known capture time: the GPS timestamp when
// present, otherwise the tag or container creation time.
func (m *MediaMetadata) EffectiveTime() *time.Time {
	if m.GPSTime != nil {
		return m.GPSTime
	}
	return m.CaptureTime
}

// InstanceKind identifies what a derived instance is.
type InstanceKind string

const (
	KindThumbnail       InstanceKind = "thumbnail"
	KindTranscodedAudio InstanceKind = "transcoded-audio"
	KindTranscodedVideo InstanceKind = "transcoded-video"
)

// DerivedInstance describes one generated artifact. A record only exists
// for files that were written and successfully re-probed.
type DerivedInstance struct {
	ID         string       `json:"id"`
	SourcePath string       `json:"source"`
	Kind       InstanceKind `json:"kind"`
	Preset     string       `json:"preset,omitempty"`
	Path       string       `json:"path"`
	Extension  string       `json:"extension"`
	Command    string       `json:"command"`
	MimeType   string       `json:"mimetype"`
	FileSize   int64        `json:"filesize"`
	Width      *int         `json:"width,omitempty"`
	Height     *int         `json:"height,omitempty"`
	Duration   *float64     `json:"duration,omitempty"`
	Bitrate    *int64       `json:"bitrate,omitempty"`
	Framerate  *float64     `json:"framerate,omitempty"`
	CreatedAt  time.Time    `json:"created"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
