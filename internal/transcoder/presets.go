package transcoder

import (
	"github.com/floostack/transcoder"

	"media-pipeline/internal/mediatypes"
)

// ParamSet is a declarative FFmpeg output configuration for one rendition.
type ParamSet struct {
	Name      string
	Kind      mediatypes.InstanceKind
	Extension string
	MimeType  string
	Args      []string
}

var _ transcoder.Options = ParamSet{}

// GetStrArguments returns a copy of the output arguments.
func (p ParamSet) GetStrArguments() []string {
	return append([]string(nil), p.Args...)
}

// VideoPresets are the renditions made for video sources: a baseline H.264
// MP4 and a Vorbis WebM, both 320x240.
func VideoPresets() []ParamSet {
	return []ParamSet{
		{
			Name:      "mp4",
			Kind:      mediatypes.KindTranscodedVideo,
			Extension: "mp4",
			MimeType:  "video/mp4",
			Args: []string{
				"-vcodec", "libx264", "-preset", "fast", "-vprofile", "baseline",
				"-vsync", "2", "-ab", "64k", "-async", "1", "-f", "mp4", "-s", "320x240",
			},
		},
		{
			Name:      "webm",
			Kind:      mediatypes.KindTranscodedVideo,
			Extension: "webm",
			MimeType:  "video/webm",
			Args: []string{
				"-acodec", "libvorbis", "-ac", "2", "-ab", "96k", "-ar", "22050", "-s", "320x240",
			},
		},
	}
}

// AudioPresets are the renditions made for audio sources.
func AudioPresets() []ParamSet {
	return []ParamSet{
		{
			Name:      "ogg",
			Kind:      mediatypes.KindTranscodedAudio,
			Extension: "ogg",
			MimeType:  "audio/ogg",
			Args:      []string{"-acodec", "libvorbis", "-ab", "64k"},
		},
		{
			Name:      "mp3",
			Kind:      mediatypes.KindTranscodedAudio,
			Extension: "mp3",
			MimeType:  "audio/mpeg",
			Args:      []string{"-acodec", "libmp3lame", "-ab", "64k"},
		},
	}
}

// PresetsFor returns the renditions for a classified source. Other types
// get none.
func PresetsFor(t mediatypes.FileType) []ParamSet {
	switch t {
	case mediatypes.FileTypeVideo:
		return VideoPresets()
	case mediatypes.FileTypeAudio:
		return AudioPresets()
	default:
		return nil
	}
}
