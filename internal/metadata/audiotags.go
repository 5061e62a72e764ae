package metadata

import (
	"strings"

	"go.senan.xyz/taglib"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

// readAudioTags copies title, comment and genre from the file's audio tags.
// Unreadable tags are ignored.
func readAudioTags(path string, md *mediatypes.MediaMetadata) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		log.Debug("audio tags of %s: %v", path, err)
		metrics.SoftFailure("metadata", "audio_tags")
		return
	}

	if v := firstTag(tags, taglib.Title); v != "" {
		md.Title = v
	}
	if v := firstTag(tags, taglib.Comment); v != "" {
		md.Caption = v
	}
	if genres := nonEmpty(tags[taglib.Genre]); len(genres) > 0 {
		md.Tags = genres
		md.Keywords = strings.Join(genres, ",")
	}
}

func firstTag(tags map[string][]string, key string) string {
	for _, v := range tags[key] {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
