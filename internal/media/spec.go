package media

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"media-pipeline/internal/mediatypes"
)

// Format is the encoding of a generated thumbnail.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat accepts "jpeg", "jpg" and "png" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported thumbnail format %q", s)
}

// Extension returns the file extension without dot.
func (f Format) Extension() string {
	if f == FormatPNG {
		return "png"
	}
	return "jpg"
}

// MimeType returns the MIME type of the format.
func (f Format) MimeType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

func (f Format) imaging() imaging.Format {
	if f == FormatPNG {
		return imaging.PNG
	}
	return imaging.JPEG
}

// Default thumbnail geometry and quality.
const (
	DefaultWidth   = 1600
	DefaultHeight  = 1600
	DefaultQuality = 90
)

// Spec describes a thumbnail.
type Spec struct {
	Width    int
	Height   int
	Format   Format
	Quality  int
	Rotation mediatypes.Rotation
}

// DefaultSpec returns a 1600x1600 JPEG at quality 90 without rotation.
func DefaultSpec() Spec {
	return Spec{Width: DefaultWidth, Height: DefaultHeight, Format: FormatJPEG, Quality: DefaultQuality}
}

// Validate checks the box, quality and rotation.
func (s Spec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid thumbnail size %dx%d", s.Width, s.Height)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("invalid thumbnail quality %d", s.Quality)
	}
	if _, err := mediatypes.ParseRotation(int(s.Rotation)); err != nil {
		return err
	}
	if s.Format != FormatJPEG && s.Format != FormatPNG {
		return fmt.Errorf("unsupported thumbnail format %q", s.Format)
	}
	return nil
}

// EffectiveRotation picks the rotation to apply: an explicit rotation
// always wins, the tag-derived one is used only when explicit is zero.
func EffectiveRotation(explicit, fromTags mediatypes.Rotation) mediatypes.Rotation {
	if explicit != mediatypes.Rotate0 {
		return explicit
	}
	return fromTags
}
