package exif

import (
	"strings"
	"time"
	_ "time/tzdata" // zone names from latlong must load on minimal hosts

	"github.com/bradfitz/latlong"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

const captureTimeLayout = "2006:01:02 15:04:05"

// ZoneLookup returns the IANA zone name for a coordinate, or "" when the
// coordinate is not covered.
type ZoneLookup func(lat, lon float64) string

// DefaultZoneLookup uses the offline latlong zone table.
func DefaultZoneLookup(lat, lon float64) string {
	return latlong.LookupZoneName(lat, lon)
}

// ResolveCaptureTime parses the original capture time and attaches the zone
// of the capture position. Without a position the time is UTC.
func ResolveCaptureTime(tags RawTags, geo *mediatypes.GeoPosition) *time.Time {
	return resolveCaptureTime(tags, geo, DefaultZoneLookup)
}

func resolveCaptureTime(tags RawTags, geo *mediatypes.GeoPosition, zones ZoneLookup) *time.Time {
	t, ok := tags.Lookup(KeyDateTimeOrig)
	if !ok {
		if t, ok = tags.Lookup(KeyDateTime); !ok {
			return nil
		}
	}

	raw := strings.Trim(t.Text(), "\x00")
	loc := time.UTC
	if geo != nil && zones != nil {
		loc = zoneFor(*geo, zones)
	}

	parsed, err := time.ParseInLocation(captureTimeLayout, raw, loc)
	if err != nil {
		log.Warn("unparseable capture time %q: %v", raw, err)
		metrics.SoftFailure("exif", "capture_time")
		return nil
	}
	return &parsed
}

func zoneFor(geo mediatypes.GeoPosition, zones ZoneLookup) *time.Location {
	name := zones(geo.Latitude, geo.Longitude)
	if name == "" {
		log.Debug("no time zone for %f,%f, using UTC", geo.Latitude, geo.Longitude)
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn("cannot load time zone %q: %v", name, err)
		return time.UTC
	}
	return loc
}
