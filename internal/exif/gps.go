package exif

import (
	"fmt"
	"math"
	"strings"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

var log = logging.Named("exif")

// RatToFloat converts a rational to a float. A zero denominator yields 0 and
// a warning instead of a division error.
func RatToFloat(num, den int64) float64 {
	if den == 0 {
		log.Warn("rational %d/%d has a zero denominator, using 0", num, den)
		metrics.SoftFailure("exif", "rational")
		return 0
	}
	return float64(num) / float64(den)
}

// toDegrees converts a [degrees, minutes, seconds] tag to decimal degrees.
func toDegrees(t Tag) (float64, error) {
	if len(t.Values) < 3 {
		return 0, fmt.Errorf("%w: expected 3 values, got %d", ErrMalformedTag, len(t.Values))
	}
	var parts [3]float64
	for i := 0; i < 3; i++ {
		f, err := t.Values[i].Float64()
		if err != nil {
			return 0, err
		}
		parts[i] = f
	}
	return parts[0] + parts[1]/60.0 + parts[2]/3600.0, nil
}

// refText returns a reference tag as a bare letter, without padding or nulls.
func refText(t Tag) string {
	return strings.Trim(t.Text(), "\x00 ")
}

// ResolveGPS converts the GPS latitude/longitude tags into a position.
//
// All four of latitude, latitude ref, longitude and longitude ref must be
// present, otherwise the result is (nil, nil). The sign is negative unless
// the ref is exactly "N" (resp. "E").
func ResolveGPS(tags RawTags) (*mediatypes.GeoPosition, error) {
	lat, okLat := tags.Lookup(KeyGPSLatitude)
	latRef, okLatRef := tags.Lookup(KeyGPSLatitudeRef)
	lon, okLon := tags.Lookup(KeyGPSLongitude)
	lonRef, okLonRef := tags.Lookup(KeyGPSLongitudeRef)
	if !okLat || !okLatRef || !okLon || !okLonRef {
		return nil, nil
	}

	latitude, err := toDegrees(lat)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	if refText(latRef) != "N" {
		latitude = -latitude
	}

	longitude, err := toDegrees(lon)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if refText(lonRef) != "E" {
		longitude = -longitude
	}

	pos := &mediatypes.GeoPosition{Latitude: latitude, Longitude: longitude}
	if !pos.Valid() {
		return nil, fmt.Errorf("%w: position %f,%f out of range", ErrMalformedTag, latitude, longitude)
	}
	return pos, nil
}

// ResolveAltitude returns the altitude in meters, negated when the altitude
// ref marks it as below sea level.
func ResolveAltitude(tags RawTags) (*float64, error) {
	alt, ok := tags.Lookup(KeyGPSAltitude)
	if !ok {
		return nil, nil
	}
	if len(alt.Values) == 0 {
		return nil, fmt.Errorf("%w: altitude has no values", ErrMalformedTag)
	}
	v, err := alt.Values[0].Float64()
	if err != nil {
		return nil, fmt.Errorf("altitude: %w", err)
	}
	if ref, ok := tags.Lookup(KeyGPSAltitudeRef); ok && belowSeaLevel(ref) {
		v = -v
	}
	return &v, nil
}

func belowSeaLevel(ref Tag) bool {
	if len(ref.Values) == 0 {
		return false
	}
	switch r := ref.Values[0]; r.Kind {
	case KindInt:
		return r.Int == 1
	case KindString:
		return strings.Trim(r.Str, "\x00 ") == "1"
	}
	return false
}

// ResolveDirection returns the image direction in degrees. The reference
// letter ("T" true north, "M" magnetic north) is recorded as found.
func ResolveDirection(tags RawTags) (*mediatypes.Direction, error) {
	dir, ok := tags.Lookup(KeyGPSDirection)
	if !ok {
		return nil, nil
	}
	if len(dir.Values) == 0 {
		return nil, fmt.Errorf("%w: direction has no values", ErrMalformedTag)
	}
	deg, err := dir.Values[0].Float64()
	if err != nil {
		return nil, fmt.Errorf("direction: %w", err)
	}
	d := &mediatypes.Direction{Degrees: deg}
	if ref, ok := tags.Lookup(KeyGPSDirectionRef); ok {
		if r := refText(ref); r != "" {
			d.Ref = mediatypes.DirectionRef(r[:1])
		}
	}
	return d, nil
}

// ResolveGPSTime builds the UTC timestamp from the GPS date stamp
// ("YYYY:MM:DD") and the hour/minute/second time stamp rationals. Invalid
// values are logged and yield nil.
func ResolveGPSTime(tags RawTags) *time.Time {
	dateTag, okDate := tags.Lookup(KeyGPSDateStamp)
	timeTag, okTime := tags.Lookup(KeyGPSTimeStamp)
	if !okDate || !okTime {
		return nil
	}

	t, err := gpsTime(refText(dateTag), timeTag)
	if err != nil {
		log.Warn("dropping GPS time: %v", err)
		metrics.SoftFailure("exif", "gpstime")
		return nil
	}
	return &t
}

func gpsTime(date string, stamp Tag) (time.Time, error) {
	var year, month, day int
	if n, err := fmt.Sscanf(date, "%d:%d:%d", &year, &month, &day); err != nil || n != 3 {
		return time.Time{}, fmt.Errorf("%w: GPS date %q", ErrMalformedTag, date)
	}
	if len(stamp.Values) < 3 {
		return time.Time{}, fmt.Errorf("%w: GPS time stamp has %d values", ErrMalformedTag, len(stamp.Values))
	}

	var hms [3]int
	for i := range hms {
		f, err := stamp.Values[i].Float64()
		if err != nil {
			return time.Time{}, err
		}
		hms[i] = int(math.Floor(f))
	}

	if month < 1 || month > 12 || day < 1 || day > daysIn(year, month) {
		return time.Time{}, fmt.Errorf("%w: GPS date %q out of range", ErrMalformedTag, date)
	}
	if hms[0] < 0 || hms[0] > 23 || hms[1] < 0 || hms[1] > 59 || hms[2] < 0 || hms[2] > 59 {
		return time.Time{}, fmt.Errorf("%w: GPS time %02d:%02d:%02d out of range", ErrMalformedTag, hms[0], hms[1], hms[2])
	}
	return time.Date(year, time.Month(month), day, hms[0], hms[1], hms[2], 0, time.UTC), nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ResolveOrientation maps the orientation tag to a clockwise rotation.
// Only the pure rotations 3, 6 and 8 are honored; mirrored orientations and
// missing tags give Rotate0.
func ResolveOrientation(tags RawTags) mediatypes.Rotation {
	t, ok := tags.Lookup(KeyOrientation)
	if !ok || len(t.Values) == 0 {
		return mediatypes.Rotate0
	}
	v, err := t.Values[0].Numerator()
	if err != nil {
		return mediatypes.Rotate0
	}
	switch v {
	case 3:
		return mediatypes.Rotate180
	case 6:
		return mediatypes.Rotate90
	case 8:
		return mediatypes.Rotate270
	}
	return mediatypes.Rotate0
}
