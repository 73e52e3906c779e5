package video_batch

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
)

var videoPathPattern = regexp.MustCompile(`/video/(\d+)`)

// Identify derives a stable, filesystem-safe ID from a share link: the numeric ID from a "/video/<digits>" path
// segment if there is one, otherwise the first 12 hex characters of the MD5 digest of the link.
func Identify(link string) string {
	if m := videoPathPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])[:12]
}
