package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// videoIDPattern matches an 11-character identifier preceded by "v=" or "/".
// Watch, short, embed, shorts and live URLs all satisfy it.
var videoIDPattern = regexp.MustCompile(`(v=|/)([A-Za-z0-9_-]{11})`)

var youTubeDomains = []string{"youtube.com", "youtu.be"}

const thumbnailURLFormat = "https://img.youtube.com/vi/%s/0.jpg"

// Extractor pulls a video identifier out of a free-form string.
type Extractor struct {
	// RequireYouTubeDomain rejects inputs that do not mention a YouTube host
	// before the pattern is applied.
	RequireYouTubeDomain bool
}

func NewExtractor(requireYouTubeDomain bool) *Extractor {
	return &Extractor{RequireYouTubeDomain: requireYouTubeDomain}
}

// Extract returns the first identifier found in raw. ok is false when there
// is none; this is an expected outcome and not an error.
func (e *Extractor) Extract(raw string) (id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if e.RequireYouTubeDomain && !isYouTubeDomain(raw) {
		return "", false
	}

	matches := videoIDPattern.FindStringSubmatch(raw)
	if len(matches) < 3 {
		return "", false
	}
	return matches[2], true
}

func isYouTubeDomain(raw string) bool {
	lower := strings.ToLower(raw)
	for _, domain := range youTubeDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// ThumbnailURL is the preview image for id.
func ThumbnailURL(id string) string {
	return fmt.Sprintf(thumbnailURLFormat, id)
}
