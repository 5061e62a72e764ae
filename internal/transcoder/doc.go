// Package transcoder produces derived audio and video renditions with FFmpeg.
//
// A rendition is described by a ParamSet: a named, fixed list of FFmpeg
// output arguments plus the container extension. ParamSet implements the
// Options interface of github.com/floostack/transcoder, so any other
// Options implementation can be passed to Transcode as well.
//
// Transcode writes into a fresh temporary file in the work directory and
// returns the exact command line it ran. Validating the result (re-probing
// it) and moving it to its final place is the caller's job. On failure the
// temporary file is removed before Transcode returns.
package transcoder
