package probe

// Class is the media class derived from a probe result.
type Class int

const (
	ClassNeither Class = iota
	ClassVideo
	ClassAudio
)

func (c Class) String() string {
	switch c {
	case ClassVideo:
		return "video"
	case ClassAudio:
		return "audio"
	default:
		return "neither"
	}
}

// streamDuration returns the stream duration, falling back to the
// container duration, and 0 when neither is known.
func (r *Result) streamDuration(s Stream) float64 {
	if s.Duration != nil {
		return *s.Duration
	}
	if r.Format.Duration != nil {
		return *r.Format.Duration
	}
	return 0
}

func (r *Result) threshold() float64 {
	if r.videoMinDuration <= 0 {
		return DefaultVideoMinDuration
	}
	return r.videoMinDuration
}

// HasVideo reports whether any video stream is longer than the threshold.
func (r *Result) HasVideo() bool {
	for _, s := range r.Streams {
		if s.CodecType == "video" && r.streamDuration(s) > r.threshold() {
			return true
		}
	}
	return false
}

// HasAudio reports whether any audio stream exists.
func (r *Result) HasAudio() bool {
	for _, s := range r.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

// IsVideo is HasVideo.
func (r *Result) IsVideo() bool {
	return r.HasVideo()
}

// IsAudio is true for audio without video. A file with both is video.
func (r *Result) IsAudio() bool {
	return r.HasAudio() && !r.HasVideo()
}

// Classify returns the media class of the probed file.
func (r *Result) Classify() Class {
	switch {
	case r.HasVideo():
		return ClassVideo
	case r.HasAudio():
		return ClassAudio
	default:
		return ClassNeither
	}
}
