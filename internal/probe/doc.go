// Package probe runs ffprobe against a file and interprets its JSON output.
//
// A Result classifies the file as video, audio or neither. A stream only
// counts as video when it lasts longer than the configured threshold
// (DefaultVideoMinDuration), so still images that ffprobe reports as a
// one-frame video are not mistaken for video.
//
// Unlike tag extraction, probing failures are hard errors: without a result
// no classification is possible.
package probe
