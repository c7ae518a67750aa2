package domain

import (
	"strings"
	"testing"
	"time"
)

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	allowed := map[State][]State{
		StateDiscovered: {StateEnriched},
		StateEnriched:   {StateQueued},
		StateQueued:     {StatePublished, StateFailed},
	}

	for _, from := range States {
		for _, to := range States {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Fatalf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}

	if !StatePublished.Terminal() || !StateFailed.Terminal() || StateQueued.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestNormalizeHashtags(t *testing.T) {
	t.Parallel()

	got := NormalizeHashtags([]string{"#desimemes #Relatable", "relatable", " #hindimemes, ", "#"})
	want := []string{"desimemes", "Relatable", "hindimemes"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestComposeCaption(t *testing.T) {
	t.Parallel()

	if got := ComposeCaption("Monday mood", []string{"desimemes", "relatable"}); got != "Monday mood\n\n#desimemes #relatable" {
		t.Fatalf("unexpected caption: %q", got)
	}
	if got := ComposeCaption("  ", []string{"meme"}); got != "#meme" {
		t.Fatalf("unexpected caption: %q", got)
	}
	if got := ComposeCaption("plain", nil); got != "plain" {
		t.Fatalf("unexpected caption: %q", got)
	}
}

func TestParseWindows(t *testing.T) {
	t.Parallel()

	windows, err := ParseWindows([]string{"19:00-21:00", "09:00-10:30"})
	if err != nil {
		t.Fatalf("ParseWindows: %v", err)
	}
	if windows[0].String() != "09:00-10:30" || windows[1].String() != "19:00-21:00" {
		t.Fatalf("windows not sorted: %v", windows)
	}

	for _, bad := range []string{"9-10", "10:00-09:00", "25:00-26:00", "09:00"} {
		if _, err := ParseWindow(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestWindowOn(t *testing.T) {
	t.Parallel()

	w, err := ParseWindow("18:00-24:00")
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	day := time.Date(2025, time.June, 1, 15, 4, 0, 0, time.UTC)
	from, to := w.On(day, time.UTC)
	if !from.Equal(time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", from)
	}
	if !to.Equal(time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", to)
	}
}

func TestRotateHashtagsOffsetsBySeed(t *testing.T) {
	t.Parallel()

	pools := []HashtagPool{
		{Name: "a", Active: true, Tags: []string{"a1", "a2", "a3"}},
		{Name: "off", Active: false, Tags: []string{"x"}},
		{Name: "b", Active: true, Tags: []string{"b1", "b2"}},
	}

	got := RotateHashtags(pools, 1)
	want := []string{"a2", "a3", "a1", "b2", "b1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected rotation: %v", got)
	}

	if strings.Join(RotateHashtags(pools, 0), ",") == strings.Join(got, ",") {
		t.Fatalf("different seeds should rotate differently")
	}
}

func TestPublishHashtagsDedupAndCap(t *testing.T) {
	t.Parallel()

	got := PublishHashtags([]string{"#memepage", "relatable"}, DefaultHashtagPools, 0)
	if len(got) != MaxHashtags {
		t.Fatalf("expected %d tags, got %d", MaxHashtags, len(got))
	}
	if got[0] != "memepage" || got[1] != "relatable" {
		t.Fatalf("own tags must come first: %v", got[:2])
	}
	seen := map[string]bool{}
	for _, tag := range got {
		if seen[strings.ToLower(tag)] {
			t.Fatalf("duplicate tag %s", tag)
		}
		seen[strings.ToLower(tag)] = true
	}
}
