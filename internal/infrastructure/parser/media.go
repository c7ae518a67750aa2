package parser

import (
	"net/url"
	"strings"

	"MemeFarm/internal/domain"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var imageHosts = []string{"i.redd.it", "i.imgur.com", "preview.redd.it"}

// classifyMedia guesses the media type of a post from its URL and listing hints.
func classifyMedia(rawURL, postHint string, isVideo, isGallery bool) domain.MediaType {
	switch {
	case isGallery || strings.Contains(rawURL, "/gallery/"):
		return domain.MediaGallery
	case isVideo || postHint == "hosted:video" || postHint == "rich:video" || strings.Contains(rawURL, "v.redd.it"):
		return domain.MediaVideo
	case postHint == "image" || isImageURL(rawURL):
		return domain.MediaImage
	default:
		return domain.MediaLink
	}
}

func isImageURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, h := range imageHosts {
		if host == h {
			return true
		}
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func candidateID(nativeID string) string {
	return "reddit:" + strings.TrimPrefix(nativeID, "t3_")
}

func subredditName(sub string) string {
	return "r/" + strings.TrimPrefix(strings.TrimSpace(sub), "r/")
}
