package exif

import (
	"errors"
	"time"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

// ImageTags is everything the pipeline takes from an image's embedded tags.
// Fields that were absent or unusable are nil.
type ImageTags struct {
	Geo         *mediatypes.GeoPosition
	Direction   *mediatypes.Direction
	GPSTime     *time.Time
	CaptureTime *time.Time
	Rotation    mediatypes.Rotation
	IPTC        IPTC
	Raw         RawTags
}

// Extract decodes the tags of path and resolves them. zones may be nil to
// use DefaultZoneLookup. Only a failure to open the file is returned.
func Extract(path string, zones ZoneLookup) (*ImageTags, error) {
	raw, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if zones == nil {
		zones = DefaultZoneLookup
	}

	out := Resolve(raw, zones)
	out.IPTC = ReadIPTC(path)
	return out, nil
}

// Resolve runs every resolver over raw. Malformed tags are logged and
// dropped.
func Resolve(raw RawTags, zones ZoneLookup) *ImageTags {
	out := &ImageTags{Raw: raw}

	geo, err := ResolveGPS(raw)
	dropOnError("gps", err)
	if geo != nil {
		alt, err := ResolveAltitude(raw)
		dropOnError("altitude", err)
		geo.Altitude = alt
	}
	out.Geo = geo

	dir, err := ResolveDirection(raw)
	dropOnError("direction", err)
	out.Direction = dir

	out.GPSTime = ResolveGPSTime(raw)
	out.CaptureTime = resolveCaptureTime(raw, geo, zones)
	out.Rotation = ResolveOrientation(raw)
	return out
}

func dropOnError(field string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrMalformedTag) {
		log.Warn("dropping %s: %v", field, err)
	} else {
		log.Error("resolving %s: %v", field, err)
	}
	metrics.SoftFailure("exif", field)
}
