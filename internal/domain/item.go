package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// State enumerates the lifecycle stages of an item.
type State string

const (
	StateDiscovered State = "DISCOVERED"
	StateEnriched   State = "ENRICHED"
	StateQueued     State = "QUEUED"
	StatePublished  State = "PUBLISHED"
	StateFailed     State = "FAILED"
)

// States lists every state in pipeline order.
var States = []State{StateDiscovered, StateEnriched, StateQueued, StatePublished, StateFailed}

// Terminal reports whether no stage acts on the state anymore.
func (s State) Terminal() bool {
	return s == StatePublished || s == StateFailed
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StateDiscovered:
		return next == StateEnriched
	case StateEnriched:
		return next == StateQueued
	case StateQueued:
		return next == StatePublished || next == StateFailed
	default:
		return false
	}
}

// MediaType describes what kind of content a source reference points to.
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaGallery MediaType = "gallery"
	MediaLink    MediaType = "link"
)

// Candidate is a raw item returned by a content source.
type Candidate struct {
	ID         string
	SourceRef  string
	SourceName string
	Title      string
	MediaType  MediaType
}

// Item is one content unit tracked through the pipeline.
type Item struct {
	ID           string
	SourceRef    string
	SourceName   string
	Title        string
	MediaType    MediaType
	CaptionText  string
	Hashtags     []string
	State        State
	ScheduledAt  time.Time
	AttemptCount int
	PublishedRef string
	LastError    string
	ClaimToken   string
	ClaimUntil   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewItem builds a freshly discovered item from a candidate.
func NewItem(c Candidate, now time.Time) Item {
	return Item{
		ID:         c.ID,
		SourceRef:  c.SourceRef,
		SourceName: c.SourceName,
		Title:      c.Title,
		MediaType:  c.MediaType,
		State:      StateDiscovered,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Enrichment is the generated text attached to an item.
type Enrichment struct {
	CaptionText string
	Hashtags    []string
}

// NormalizeHashtags strips leading '#', spaces and duplicates, keeping order.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		for _, field := range strings.Fields(raw) {
			tag := strings.TrimLeft(strings.TrimSpace(field), "#")
			tag = strings.Trim(tag, ",.;")
			if tag == "" {
				continue
			}
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// FormatHashtags renders tags as "#a #b #c".
func FormatHashtags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

// ComposeCaption joins caption text and hashtags the way they are published.
func ComposeCaption(caption string, tags []string) string {
	caption = strings.TrimSpace(caption)
	formatted := FormatHashtags(tags)
	switch {
	case formatted == "":
		return caption
	case caption == "":
		return formatted
	default:
		return caption + "\n\n" + formatted
	}
}

// TruncateRunes cuts s to at most n characters, never splitting one.
// Invalid UTF-8 sequences are replaced.
func TruncateRunes(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// HashtagPool is a named, rotating list of tags appended at publish time.
type HashtagPool struct {
	Name   string
	Tags   []string
	Active bool
}
