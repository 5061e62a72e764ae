package exif

import (
	"fmt"
	"io"
	"os"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"media-pipeline/internal/metrics"
)

// maxValuesPerTag caps the values kept for a single tag; strip offset
// tables and similar arrays are of no use to the resolvers.
const maxValuesPerTag = 64

// imageFields are the IFD0 fields; goexif reports IFD0 and the EXIF sub-IFD
// under a single namespace.
var imageFields = map[goexif.FieldName]bool{
	goexif.ImageWidth:                       true,
	goexif.ImageLength:                      true,
	goexif.BitsPerSample:                    true,
	goexif.Compression:                      true,
	goexif.PhotometricInterpretation:        true,
	goexif.Orientation:                      true,
	goexif.SamplesPerPixel:                  true,
	goexif.PlanarConfiguration:              true,
	goexif.YCbCrSubSampling:                 true,
	goexif.YCbCrPositioning:                 true,
	goexif.XResolution:                      true,
	goexif.YResolution:                      true,
	goexif.ResolutionUnit:                   true,
	goexif.DateTime:                         true,
	goexif.ImageDescription:                 true,
	goexif.Make:                             true,
	goexif.Model:                            true,
	goexif.Software:                         true,
	goexif.Artist:                           true,
	goexif.Copyright:                        true,
	goexif.ExifIFDPointer:                   true,
	goexif.GPSInfoIFDPointer:                true,
	goexif.InteroperabilityIFDPointer:       true,
	goexif.ThumbJPEGInterchangeFormat:       true,
	goexif.ThumbJPEGInterchangeFormatLength: true,
}

// Decode reads the EXIF block of the file at path into a RawTags map.
//
// Structural problems inside the file (no EXIF segment, bad offsets,
// truncated data, decoder panics) are soft: they are logged and an empty
// map is returned. Only failing to open the file is an error.
func Decode(path string) (RawTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return DecodeReader(f, path), nil
}

// DecodeReader decodes EXIF from r. name is only used in log messages.
func DecodeReader(r io.Reader, name string) (tags RawTags) {
	tags = RawTags{}

	defer func() {
		if p := recover(); p != nil {
			log.Warn("EXIF decoder panicked on %s: %v", name, p)
			metrics.SoftFailure("exif", "decode")
			tags = RawTags{}
		}
	}()

	x, err := goexif.Decode(r)
	if err != nil && (x == nil || goexif.IsCriticalError(err)) {
		log.Debug("no usable EXIF in %s: %v", name, err)
		return tags
	}
	if err != nil {
		log.Debug("partial EXIF in %s: %v", name, err)
	}

	if err := x.Walk(walker(tags)); err != nil {
		log.Warn("walking EXIF of %s: %v", name, err)
	}
	return tags
}

type walker RawTags

func (w walker) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	if tag == nil {
		return nil
	}
	values := convert(tag)
	if len(values) == 0 {
		return nil
	}
	w[groupOf(name)+" "+string(name)] = Tag{Values: values}
	return nil
}

func groupOf(name goexif.FieldName) string {
	switch {
	case imageFields[name]:
		return "Image"
	case strings.HasPrefix(string(name), "GPS"):
		return "GPS"
	default:
		return "EXIF"
	}
}

// convert turns a tiff tag into values. Undefined and unknown formats are
// dropped; they carry maker data the resolvers never read.
func convert(tag *tiff.Tag) []Value {
	n := int(tag.Count)
	if n > maxValuesPerTag {
		n = maxValuesPerTag
	}

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		return []Value{String(s)}
	case tiff.RatVal:
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				break
			}
			out = append(out, Rational(num, den))
		}
		return out
	case tiff.IntVal:
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := tag.Int64(i)
			if err != nil {
				break
			}
			out = append(out, Int(v))
		}
		return out
	case tiff.FloatVal:
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := tag.Float(i)
			if err != nil {
				break
			}
			out = append(out, Float(v))
		}
		return out
	}
	return nil
}
