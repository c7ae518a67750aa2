package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"MemeFarm/internal/domain"
)

const searchJSON = `{
  "data": [
    {"id": "1", "text": " Monday vs chai ", "attachments": {"media_keys": ["3_a", "3_b"]}},
    {"id": "2", "text": "clip", "attachments": {"media_keys": ["7_v"]}},
    {"id": "3", "text": "no media"}
  ],
  "includes": {
    "media": [
      {"media_key": "3_a", "type": "photo", "url": "https://pbs.twimg.com/media/a.jpg"},
      {"media_key": "3_b", "type": "photo", "url": "https://pbs.twimg.com/media/b.jpg"},
      {"media_key": "7_v", "type": "video"}
    ]
  }
}`

func TestBuildSearchURLClampsResults(t *testing.T) {
	t.Parallel()

	cases := map[int]string{0: "100", 500: "100", 3: "10", 42: "42"}
	for limit, want := range cases {
		u, err := buildSearchURL("https://api.twitter.com", "memes has:images", limit)
		if err != nil {
			t.Fatalf("buildSearchURL(%d): %v", limit, err)
		}
		parsed, err := url.Parse(u)
		if err != nil {
			t.Fatalf("parse result: %v", err)
		}
		if parsed.Path != "/2/tweets/search/recent" {
			t.Fatalf("unexpected path %s", parsed.Path)
		}
		q := parsed.Query()
		if got := q.Get("max_results"); got != want {
			t.Fatalf("limit %d: max_results %s, want %s", limit, got, want)
		}
		if q.Get("query") != "memes has:images" || q.Get("expansions") != "attachments.media_keys" {
			t.Fatalf("unexpected query: %s", parsed.RawQuery)
		}
	}
}

func TestTwitterSourceFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tw-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/2/tweets/search/recent" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(searchJSON))
	}))
	defer server.Close()

	src, err := NewTwitterSource("tw-token", server.URL, server.Client())
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	got, err := src.Fetch(context.Background(), []string{"(meme OR memes) lang:en", " "}, 25)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one candidate per photo, got %d: %+v", len(got), got)
	}
	first := got[0]
	if first.ID != "twitter:3_a" || first.SourceRef != "https://pbs.twimg.com/media/a.jpg" {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.SourceName != "twitter" || first.Title != "Monday vs chai" || first.MediaType != domain.MediaImage {
		t.Fatalf("unexpected candidate fields: %+v", first)
	}
	if got[1].ID != "twitter:3_b" || got[1].Title != first.Title {
		t.Fatalf("second photo must share the tweet title: %+v", got[1])
	}
}

func TestTweetTitleIsCutByCharacter(t *testing.T) {
	t.Parallel()

	tw := tweet{ID: "1", Text: strings.Repeat("😂", 300)}
	tw.Attachments.MediaKeys = []string{"k"}
	var s tweetSearch
	s.Data = []tweet{tw}
	s.Includes.Media = []tweetMedia{{MediaKey: "k", Type: "photo", URL: "https://pbs.twimg.com/media/k.jpg"}}

	got := s.candidates()
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if !utf8.ValidString(got[0].Title) || utf8.RuneCountInString(got[0].Title) != maxTweetTitleRunes {
		t.Fatalf("title must be %d whole characters, got %q", maxTweetTitleRunes, got[0].Title)
	}
}

func TestTwitterSourceRejectedToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	src, err := NewTwitterSource("expired", server.URL, server.Client())
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	_, err = src.Fetch(context.Background(), []string{"memes"}, 10)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	if _, err := NewTwitterSource(" ", server.URL, nil); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
