package exif

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Tag keys used by the resolvers. Keys follow the "<group> <Name>" layout
// produced by Decode.
const (
	KeyGPSLatitude     = "GPS GPSLatitude"
	KeyGPSLatitudeRef  = "GPS GPSLatitudeRef"
	KeyGPSLongitude    = "GPS GPSLongitude"
	KeyGPSLongitudeRef = "GPS GPSLongitudeRef"
	KeyGPSAltitude     = "GPS GPSAltitude"
	KeyGPSAltitudeRef  = "GPS GPSAltitudeRef"
	KeyGPSDirection    = "GPS GPSImgDirection"
	KeyGPSDirectionRef = "GPS GPSImgDirectionRef"
	KeyGPSDateStamp    = "GPS GPSDateStamp"
	KeyGPSTimeStamp    = "GPS GPSTimeStamp"
	KeyDateTimeOrig    = "EXIF DateTimeOriginal"
	KeyDateTime        = "Image DateTime"
	KeyOrientation     = "Image Orientation"
	KeyDescription     = "Image ImageDescription"

	// fallbackPrefix is prepended when a bare key is missing; some decoders
	// file GPS tags under the EXIF group.
	fallbackPrefix = "EXIF "
)

// ErrMalformedTag is returned when a tag is present but its value cannot be
// interpreted. Absent tags are reported as nil results without an error.
var ErrMalformedTag = errors.New("malformed tag")

// ValueKind is the representation of a single tag value.
type ValueKind int

const (
	KindRational ValueKind = iota
	KindInt
	KindFloat
	KindString
)

// Value is one element of a tag's value sequence.
type Value struct {
	Kind  ValueKind
	Num   int64
	Den   int64
	Int   int64
	Float float64
	Str   string
}

// Rational builds a rational value.
func Rational(num, den int64) Value {
	return Value{Kind: KindRational, Num: num, Den: den}
}

// Int builds an integer value.
func Int(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// Float builds a floating point value.
func Float(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// String builds a string value.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Float64 converts the value to a float. Rationals with a zero denominator
// convert to 0. Strings are accepted as decimals or "num/den" fractions.
func (v Value) Float64() (float64, error) {
	switch v.Kind {
	case KindRational:
		return RatToFloat(v.Num, v.Den), nil
	case KindInt:
		return float64(v.Int), nil
	case KindFloat:
		return v.Float, nil
	case KindString:
		return parseFraction(v.Str)
	}
	return 0, fmt.Errorf("%w: unknown value kind %d", ErrMalformedTag, v.Kind)
}

// Numerator returns the integer part of a value as stored: the numerator of
// a rational, the integer itself, or a truncated float.
func (v Value) Numerator() (int64, error) {
	switch v.Kind {
	case KindRational:
		return v.Num, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return int64(v.Float), nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedTag, v.Str)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: unknown value kind %d", ErrMalformedTag, v.Kind)
}

func (v Value) String() string {
	switch v.Kind {
	case KindRational:
		return fmt.Sprintf("%d/%d", v.Num, v.Den)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return v.Str
	}
}

func parseFraction(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		d, err2 := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("%w: %q is not a fraction", ErrMalformedTag, s)
		}
		return RatToFloat(n, d), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformedTag, s)
	}
	f, _ := r.Float64()
	return f, nil
}

// Tag is a decoded tag with its ordered values.
type Tag struct {
	Values []Value
}

// NewTag builds a tag from values.
func NewTag(values ...Value) Tag {
	return Tag{Values: values}
}

// Text returns the tag as text: the first string value with surrounding
// whitespace removed, or the first value's formatted form.
func (t Tag) Text() string {
	if len(t.Values) == 0 {
		return ""
	}
	if t.Values[0].Kind == KindString {
		return strings.TrimSpace(t.Values[0].Str)
	}
	return t.Values[0].String()
}

// RawTags maps "<group> <Name>" keys to decoded tags.
type RawTags map[string]Tag

// Lookup returns the tag for key, retrying with the "EXIF " prefix when the
// bare key is absent.
func (r RawTags) Lookup(key string) (Tag, bool) {
	if t, ok := r[key]; ok {
		return t, true
	}
	t, ok := r[fallbackPrefix+key]
	return t, ok
}
