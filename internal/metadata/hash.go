package metadata

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"io"

	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/metrics"
)

// hash computes md5 and sha1 of path in a single read. Failures leave both
// empty.
func (r *Resolver) hash(path string) (string, string) {
	f, err := filesystem.OpenWithRetry(path, r.retry)
	if err != nil {
		log.Warn("hashing %s: %v", path, err)
		metrics.SoftFailure("metadata", "hash")
		return "", ""
	}
	defer f.Close()

	m, s := md5.New(), sha1.New()
	if _, err := io.Copy(io.MultiWriter(m, s), f); err != nil {
		log.Warn("hashing %s: %v", path, err)
		metrics.SoftFailure("metadata", "hash")
		return "", ""
	}
	return hex.EncodeToString(m.Sum(nil)), hex.EncodeToString(s.Sum(nil))
}
