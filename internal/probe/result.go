package probe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stream is one stream descriptor from the probe output.
type Stream struct {
	Index        int
	CodecType    string
	CodecName    string
	Duration     *float64
	Width        int
	Height       int
	BitRate      *int64
	AvgFrameRate string
	Tags         map[string]string
}

// Format is the container-level descriptor.
type Format struct {
	FormatName string
	Duration   *float64
	BitRate    *int64
	Tags       map[string]string
}

// Result is the parsed output of one probe run. It is only meaningful for
// the file it was produced from and is never persisted.
type Result struct {
	Streams []Stream
	Format  Format

	// videoMinDuration is copied from the Prober so classification uses the
	// threshold the result was produced under.
	videoMinDuration float64
}

type rawOutput struct {
	Streams []rawStream `json:"streams"`
	Format  rawFormat   `json:"format"`
}

type rawStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Duration     string            `json:"duration"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	BitRate      string            `json:"bit_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
}

type rawFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// ParseResult decodes ffprobe's JSON output. An empty object is valid and
// yields a result with no streams.
func ParseResult(data []byte, videoMinDuration float64) (*Result, error) {
	var raw rawOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	r := &Result{
		Streams: make([]Stream, 0, len(raw.Streams)),
		Format: Format{
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			BitRate:    parseInt(raw.Format.BitRate),
			Tags:       raw.Format.Tags,
		},
		videoMinDuration: videoMinDuration,
	}
	if r.Format.Tags == nil {
		r.Format.Tags = map[string]string{}
	}

	for _, s := range raw.Streams {
		r.Streams = append(r.Streams, Stream{
			Index:        s.Index,
			CodecType:    s.CodecType,
			CodecName:    s.CodecName,
			Duration:     parseFloat(s.Duration),
			Width:        s.Width,
			Height:       s.Height,
			BitRate:      parseInt(s.BitRate),
			AvgFrameRate: s.AvgFrameRate,
			Tags:         s.Tags,
		})
	}
	return r, nil
}

// ffprobe prints numbers as strings and uses "N/A" for unknown values.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
