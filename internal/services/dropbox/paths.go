package dropbox

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultLanguage names the folder used when a video has no language.
const DefaultLanguage = "Unknown"

var segmentReplacer = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Paths builds archive destinations under a fixed root.
type Paths struct {
	root     string
	fallback string
}

// NewPaths returns a path builder rooted at root. Trailing slashes on root
// are dropped; the fallback gets the same cleaning as any language and an
// empty one uses DefaultLanguage.
func NewPaths(root, fallback string) Paths {
	fallback = segmentReplacer.Replace(norm.NFC.String(strings.TrimSpace(fallback)))
	if fallback == "" {
		fallback = DefaultLanguage
	}
	return Paths{root: strings.TrimRight(strings.TrimSpace(root), "/"), fallback: fallback}
}

// Root returns the normalised archive root.
func (p Paths) Root() string {
	return p.root
}

// Segment sanitises a language value into a single folder name.
func (p Paths) Segment(value string) string {
	cleaned := segmentReplacer.Replace(norm.NFC.String(strings.TrimSpace(value)))
	if cleaned == "" {
		return p.fallback
	}
	return cleaned
}

// Target is root/<language>/<id>.mp4.
func (p Paths) Target(language, videoID string) string {
	return p.root + "/" + p.Segment(language) + "/" + videoID + ".mp4"
}

// ConflictTarget is root/<language>/<id>-<epochMillis>.mp4, used when the
// plain target already exists.
func (p Paths) ConflictTarget(language, videoID string, now time.Time) string {
	return p.root + "/" + p.Segment(language) + "/" + videoID + "-" + strconv.FormatInt(now.UnixMilli(), 10) + ".mp4"
}
