package exif

import (
	"errors"
	"math"
	"testing"
	"time"

	"media-pipeline/internal/mediatypes"
)

func dms(d, m, s Value) Tag {
	return NewTag(d, m, s)
}

func gpsTags(lat Tag, latRef string, lon Tag, lonRef string) RawTags {
	return RawTags{
		KeyGPSLatitude:     lat,
		KeyGPSLatitudeRef:  NewTag(String(latRef)),
		KeyGPSLongitude:    lon,
		KeyGPSLongitudeRef: NewTag(String(lonRef)),
	}
}

func TestRatToFloat(t *testing.T) {
	tests := []struct {
		num, den int64
		want     float64
	}{
		{1212, 25, 48.48},
		{1, 2, 0.5},
		{0, 1, 0},
		{5, 0, 0},
		{-3, 4, -0.75},
	}
	for _, tt := range tests {
		if got := RatToFloat(tt.num, tt.den); got != tt.want {
			t.Errorf("RatToFloat(%d, %d) = %v, want %v", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestResolveGPS(t *testing.T) {
	fixture := dms(Rational(24, 1), Rational(57, 1), Rational(1212, 25))
	lon := dms(Rational(121, 1), Rational(30, 1), Rational(0, 1))

	tests := []struct {
		name    string
		tags    RawTags
		wantLat float64
		wantLon float64
	}{
		{"north east", gpsTags(fixture, "N", lon, "E"), 24.963466666666665, 121.5},
		{"south west", gpsTags(fixture, "S", lon, "W"), -24.963466666666665, -121.5},
		{"ref with trailing null", gpsTags(fixture, "N\x00", lon, "E\x00"), 24.963466666666665, 121.5},
		{"lowercase ref is not north", gpsTags(fixture, "n", lon, "E"), -24.963466666666665, 121.5},
		{
			"zero denominator seconds",
			gpsTags(dms(Rational(10, 1), Rational(30, 1), Rational(7, 0)), "N", lon, "E"),
			10.5, 121.5,
		},
		{
			"string and int values",
			gpsTags(dms(Int(24), String("57"), String("1212/25")), "N", lon, "E"),
			24.963466666666665, 121.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveGPS(tt.tags)
			if err != nil {
				t.Fatalf("ResolveGPS() error = %v", err)
			}
			if got == nil {
				t.Fatal("ResolveGPS() = nil")
			}
			if math.Abs(got.Latitude-tt.wantLat) > 1e-12 {
				t.Errorf("Latitude = %v, want %v", got.Latitude, tt.wantLat)
			}
			if math.Abs(got.Longitude-tt.wantLon) > 1e-12 {
				t.Errorf("Longitude = %v, want %v", got.Longitude, tt.wantLon)
			}
		})
	}
}

func TestResolveGPS_Absent(t *testing.T) {
	full := gpsTags(dms(Rational(1, 1), Rational(0, 1), Rational(0, 1)), "N",
		dms(Rational(2, 1), Rational(0, 1), Rational(0, 1)), "E")

	for _, missing := range []string{KeyGPSLatitude, KeyGPSLatitudeRef, KeyGPSLongitude, KeyGPSLongitudeRef} {
		t.Run(missing, func(t *testing.T) {
			tags := RawTags{}
			for k, v := range full {
				if k != missing {
					tags[k] = v
				}
			}
			got, err := ResolveGPS(tags)
			if got != nil || err != nil {
				t.Errorf("ResolveGPS() = %+v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestResolveGPS_Malformed(t *testing.T) {
	lon := dms(Rational(2, 1), Rational(0, 1), Rational(0, 1))

	tests := []struct {
		name string
		tags RawTags
	}{
		{"two values", gpsTags(NewTag(Rational(1, 1), Rational(2, 1)), "N", lon, "E")},
		{"non numeric", gpsTags(dms(String("abc"), Rational(0, 1), Rational(0, 1)), "N", lon, "E")},
		{"latitude out of range", gpsTags(dms(Rational(95, 1), Rational(0, 1), Rational(0, 1)), "N", lon, "E")},
		{"longitude out of range", gpsTags(lon, "N", dms(Rational(200, 1), Rational(0, 1), Rational(0, 1)), "E")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveGPS(tt.tags)
			if got != nil {
				t.Errorf("ResolveGPS() = %+v, want nil", got)
			}
			if !errors.Is(err, ErrMalformedTag) {
				t.Errorf("ResolveGPS() error = %v, want ErrMalformedTag", err)
			}
		})
	}
}

func TestLookup_ExifPrefixFallback(t *testing.T) {
	tags := RawTags{
		"EXIF " + KeyGPSLatitude:     dms(Rational(24, 1), Rational(57, 1), Rational(1212, 25)),
		"EXIF " + KeyGPSLatitudeRef:  NewTag(String("N")),
		"EXIF " + KeyGPSLongitude:    dms(Rational(121, 1), Rational(30, 1), Rational(0, 1)),
		"EXIF " + KeyGPSLongitudeRef: NewTag(String("E")),
	}

	got, err := ResolveGPS(tags)
	if err != nil || got == nil {
		t.Fatalf("ResolveGPS() = %v, %v", got, err)
	}
	if got.Longitude != 121.5 {
		t.Errorf("Longitude = %v, want 121.5", got.Longitude)
	}
}

func TestResolveAltitude(t *testing.T) {
	tests := []struct {
		name string
		tags RawTags
		want *float64
	}{
		{"absent", RawTags{}, nil},
		{"above sea level", RawTags{KeyGPSAltitude: NewTag(Rational(1234, 10))}, mediatypes.Ptr(123.4)},
		{
			"byte ref below sea level",
			RawTags{KeyGPSAltitude: NewTag(Rational(15, 1)), KeyGPSAltitudeRef: NewTag(Int(1))},
			mediatypes.Ptr(-15.0),
		},
		{
			"string ref below sea level",
			RawTags{KeyGPSAltitude: NewTag(Rational(15, 1)), KeyGPSAltitudeRef: NewTag(String("1"))},
			mediatypes.Ptr(-15.0),
		},
		{
			"ref zero",
			RawTags{KeyGPSAltitude: NewTag(Rational(15, 1)), KeyGPSAltitudeRef: NewTag(Int(0))},
			mediatypes.Ptr(15.0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAltitude(tt.tags)
			if err != nil {
				t.Fatalf("ResolveAltitude() error = %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ResolveAltitude() = %v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("ResolveAltitude() = %v, want %v", got, *tt.want)
			}
		})
	}

	if _, err := ResolveAltitude(RawTags{KeyGPSAltitude: NewTag()}); !errors.Is(err, ErrMalformedTag) {
		t.Errorf("empty altitude error = %v, want ErrMalformedTag", err)
	}
}

func TestResolveDirection(t *testing.T) {
	tests := []struct {
		name    string
		tags    RawTags
		wantDeg float64
		wantRef mediatypes.DirectionRef
	}{
		{"true north", RawTags{KeyGPSDirection: NewTag(Rational(9000, 100)), KeyGPSDirectionRef: NewTag(String("T"))}, 90, "T"},
		{"magnetic", RawTags{KeyGPSDirection: NewTag(Rational(271, 2)), KeyGPSDirectionRef: NewTag(String("M"))}, 135.5, "M"},
		{"no ref", RawTags{KeyGPSDirection: NewTag(Rational(10, 1))}, 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDirection(tt.tags)
			if err != nil || got == nil {
				t.Fatalf("ResolveDirection() = %v, %v", got, err)
			}
			if got.Degrees != tt.wantDeg || got.Ref != tt.wantRef {
				t.Errorf("ResolveDirection() = %+v, want %v %q", got, tt.wantDeg, tt.wantRef)
			}
		})
	}

	if got, err := ResolveDirection(RawTags{}); got != nil || err != nil {
		t.Errorf("absent direction = %v, %v", got, err)
	}
}

func TestResolveGPSTime(t *testing.T) {
	stamp := func(h, m, s int64) Tag { return NewTag(Rational(h, 1), Rational(m, 1), Rational(s, 1)) }

	tests := []struct {
		name string
		tags RawTags
		want *time.Time
	}{
		{
			"valid",
			RawTags{KeyGPSDateStamp: NewTag(String("2022:03:30")), KeyGPSTimeStamp: stamp(14, 5, 30)},
			mediatypes.Ptr(time.Date(2022, 3, 30, 14, 5, 30, 0, time.UTC)),
		},
		{
			"fractional seconds truncated",
			RawTags{KeyGPSDateStamp: NewTag(String("2022:03:30")),
				KeyGPSTimeStamp: NewTag(Rational(14, 1), Rational(5, 1), Rational(3045, 100))},
			mediatypes.Ptr(time.Date(2022, 3, 30, 14, 5, 30, 0, time.UTC)),
		},
		{"invalid day of month", RawTags{KeyGPSDateStamp: NewTag(String("2021:02:30")), KeyGPSTimeStamp: stamp(1, 2, 3)}, nil},
		{"invalid hour", RawTags{KeyGPSDateStamp: NewTag(String("2021:02:01")), KeyGPSTimeStamp: stamp(25, 0, 0)}, nil},
		{"garbage date", RawTags{KeyGPSDateStamp: NewTag(String("yesterday")), KeyGPSTimeStamp: stamp(1, 2, 3)}, nil},
		{"missing time", RawTags{KeyGPSDateStamp: NewTag(String("2022:03:30"))}, nil},
		{"missing date", RawTags{KeyGPSTimeStamp: stamp(1, 2, 3)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveGPSTime(tt.tags)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ResolveGPSTime() = %v, want nil", got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("ResolveGPSTime() = %v, want %v", got, tt.want)
			case got != nil && got.Location() != time.UTC:
				t.Errorf("ResolveGPSTime() location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestResolveCaptureTime(t *testing.T) {
	stockholm := &mediatypes.GeoPosition{Latitude: 59.3293, Longitude: 18.0686}
	zones := func(lat, lon float64) string { return "Europe/Stockholm" }
	noZone := func(lat, lon float64) string { return "" }
	badZone := func(lat, lon float64) string { return "Mars/Olympus_Mons" }

	tests := []struct {
		name     string
		tags     RawTags
		geo      *mediatypes.GeoPosition
		zones    ZoneLookup
		wantNil  bool
		wantZone string
	}{
		{"no position is UTC", RawTags{KeyDateTimeOrig: NewTag(String("2014:05:22 14:37:51"))}, nil, zones, false, "UTC"},
		{"position zone attached", RawTags{KeyDateTimeOrig: NewTag(String("2014:05:22 14:37:51"))}, stockholm, zones, false, "Europe/Stockholm"},
		{"uncovered position is UTC", RawTags{KeyDateTimeOrig: NewTag(String("2014:05:22 14:37:51"))}, stockholm, noZone, false, "UTC"},
		{"unloadable zone is UTC", RawTags{KeyDateTimeOrig: NewTag(String("2014:05:22 14:37:51"))}, stockholm, badZone, false, "UTC"},
		{"trailing null stripped", RawTags{KeyDateTimeOrig: NewTag(String("2014:05:22 14:37:51\x00"))}, nil, zones, false, "UTC"},
		{"fallback to DateTime", RawTags{KeyDateTime: NewTag(String("2014:05:22 14:37:51"))}, nil, zones, false, "UTC"},
		{"all zeros", RawTags{KeyDateTimeOrig: NewTag(String("0000:00:00 00:00:00"))}, nil, zones, true, ""},
		{"embedded null", RawTags{KeyDateTimeOrig: NewTag(String("4:24:26\x002004:06:25 0"))}, nil, zones, true, ""},
		{"garbage", RawTags{KeyDateTimeOrig: NewTag(String("yesterday"))}, nil, zones, true, ""},
		{"absent", RawTags{}, nil, zones, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveCaptureTime(tt.tags, tt.geo, tt.zones)
			if tt.wantNil {
				if got != nil {
					t.Errorf("resolveCaptureTime() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("resolveCaptureTime() = nil")
			}
			if got.Location().String() != tt.wantZone {
				t.Errorf("location = %q, want %q", got.Location(), tt.wantZone)
			}
			if got.Year() != 2014 || got.Month() != time.May || got.Day() != 22 ||
				got.Hour() != 14 || got.Minute() != 37 || got.Second() != 51 {
				t.Errorf("wall clock = %v, want 2014-05-22 14:37:51", got)
			}
		})
	}
}

func TestResolveCaptureTime_DefaultZoneLookup(t *testing.T) {
	helsinki := &mediatypes.GeoPosition{Latitude: 60.1699, Longitude: 24.9384}
	tags := RawTags{KeyDateTimeOrig: NewTag(String("2020:07:01 12:00:00"))}

	got := ResolveCaptureTime(tags, helsinki)
	if got == nil {
		t.Fatal("ResolveCaptureTime() = nil")
	}
	if got.Location().String() != "Europe/Helsinki" {
		t.Errorf("location = %q, want Europe/Helsinki", got.Location())
	}
	if _, offset := got.Zone(); offset != 3*3600 {
		t.Errorf("offset = %d, want %d (EEST)", offset, 3*3600)
	}
}

func TestResolveOrientation(t *testing.T) {
	tests := []struct {
		value Value
		want  mediatypes.Rotation
	}{
		{Int(1), 0},
		{Int(3), 180},
		{Int(6), 90},
		{Int(8), 270},
		{Int(2), 0},
		{Int(5), 0},
		{String("6"), 90},
		{String("upside"), 0},
	}
	for _, tt := range tests {
		got := ResolveOrientation(RawTags{KeyOrientation: NewTag(tt.value)})
		if got != tt.want {
			t.Errorf("ResolveOrientation(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}
	if got := ResolveOrientation(RawTags{}); got != 0 {
		t.Errorf("ResolveOrientation(empty) = %d, want 0", got)
	}
}

func TestResolve_DropsMalformed(t *testing.T) {
	tags := gpsTags(NewTag(Rational(1, 1)), "N", dms(Rational(2, 1), Rational(0, 1), Rational(0, 1)), "E")
	tags[KeyOrientation] = NewTag(Int(3))

	got := Resolve(tags, nil)
	if got.Geo != nil {
		t.Errorf("Geo = %+v, want nil for malformed latitude", got.Geo)
	}
	if got.Rotation != 180 {
		t.Errorf("Rotation = %d, want 180", got.Rotation)
	}
}
