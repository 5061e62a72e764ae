package probe

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

// Container tags carrying an ISO 6709 position, in lookup order.
const (
	TagLocation      = "location"
	TagAppleLocation = "com.apple.quicktime.location.ISO6709"
	TagCreationTime  = "creation_time"
)

// iso6709 matches "+60.1997+024.9473+016.943/" style strings; altitude is optional.
var iso6709 = regexp.MustCompile(`^([-+]\d+\.\d+)([-+]\d+\.\d+)([-+]\d+\.\d+)?`)

// Info is the stream-derived metadata of a video or audio file.
type Info struct {
	Duration     *float64
	Width        *int
	Height       *int
	Bitrate      *int64
	Framerate    *float64
	Geo          *mediatypes.GeoPosition
	CreationTime *time.Time
}

// ExtractGeo parses the container location tag.
func (r *Result) ExtractGeo() *mediatypes.GeoPosition {
	loc, ok := r.Format.Tags[TagLocation]
	if !ok {
		if loc, ok = r.Format.Tags[TagAppleLocation]; !ok {
			return nil
		}
	}

	m := iso6709.FindStringSubmatch(loc)
	if m == nil {
		log.Warn("unrecognised location tag %q", loc)
		metrics.SoftFailure("probe", "geo")
		return nil
	}

	lat, _ := strconv.ParseFloat(m[1], 64)
	lon, _ := strconv.ParseFloat(m[2], 64)
	pos := &mediatypes.GeoPosition{Latitude: lat, Longitude: lon}
	if m[3] != "" {
		alt, _ := strconv.ParseFloat(m[3], 64)
		pos.Altitude = &alt
	}
	if !pos.Valid() {
		log.Warn("location %q out of range", loc)
		metrics.SoftFailure("probe", "geo")
		return nil
	}
	return pos
}

// ExtractCreationTime parses the container creation_time tag. Values
// without a zone are taken as UTC.
func (r *Result) ExtractCreationTime() *time.Time {
	ts, ok := r.Format.Tags[TagCreationTime]
	if !ok || strings.TrimSpace(ts) == "" {
		return nil
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(ts), time.UTC)
	if err != nil {
		log.Warn("unparseable creation_time %q: %v", ts, err)
		metrics.SoftFailure("probe", "creation_time")
		return nil
	}
	return &t
}

// firstStream returns the first stream of the given codec type.
func (r *Result) firstStream(codecType string) (Stream, bool) {
	for _, s := range r.Streams {
		if s.CodecType == codecType {
			return s, true
		}
	}
	return Stream{}, false
}

// videoStream returns the first video stream longer than the video
// threshold, or the first video stream when none is. Cover art shows up as
// a short video stream that may come before the real one.
func (r *Result) videoStream() (Stream, bool) {
	for _, s := range r.Streams {
		if s.CodecType == "video" && r.streamDuration(s) > r.threshold() {
			return s, true
		}
	}
	return r.firstStream("video")
}

// VideoInfo collects duration, dimensions and framerate from the video
// stream picked by videoStream, the container bitrate, position and
// creation time.
func (r *Result) VideoInfo() Info {
	var info Info
	if s, ok := r.videoStream(); ok {
		info.Duration = s.Duration
		info.Width = mediatypes.Ptr(s.Width)
		info.Height = mediatypes.Ptr(s.Height)
		info.Framerate = parseFrameRate(s.AvgFrameRate)
	}
	r.fillCommon(&info)
	return info
}

// AudioInfo collects duration from the first audio stream, the container
// bitrate, position and creation time.
func (r *Result) AudioInfo() Info {
	var info Info
	if s, ok := r.firstStream("audio"); ok {
		info.Duration = s.Duration
	}
	r.fillCommon(&info)
	return info
}

func (r *Result) fillCommon(info *Info) {
	if info.Duration == nil {
		info.Duration = r.Format.Duration
	}
	info.Bitrate = r.Format.BitRate
	info.Geo = r.ExtractGeo()
	info.CreationTime = r.ExtractCreationTime()
}

// parseFrameRate converts "num/den" (or a plain number) to frames per
// second. "0/0" and other undefined rates give nil.
func parseFrameRate(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		den = "1"
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 || n <= 0 {
		if err1 != nil || err2 != nil {
			metrics.SoftFailure("probe", "framerate")
		}
		return nil
	}
	fps := n / d
	return &fps
}
