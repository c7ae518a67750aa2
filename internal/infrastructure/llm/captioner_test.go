package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"MemeFarm/internal/domain"
)

func chatServer(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model != "test-model" || len(req.Messages) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !strings.Contains(req.Messages[1].Content, "Monday mood") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
}

func newTestCaptioner(server *httptest.Server, apiKey string) *Captioner {
	c := NewCaptioner(Config{Endpoint: server.URL, Model: "test-model", APIKey: apiKey}, server.Client())
	c.retries = 2
	return c
}

var testItem = domain.Item{ID: "reddit:abc", Title: "Monday mood", SourceName: "r/IndianDankMemes"}

func TestGenerateParsesCaptionAndHashtags(t *testing.T) {
	t.Parallel()

	server := chatServer(t, http.StatusOK, "CAPTION: <b>Monday</b> ho ya Sunday: same feeling 😩\nHASHTAGS: #desimemes #relatable, #Desimemes #mondayblues", nil)
	defer server.Close()

	got, err := newTestCaptioner(server, "key").Generate(context.Background(), testItem)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.CaptionText != "Monday ho ya Sunday: same feeling 😩" {
		t.Fatalf("unexpected caption: %q", got.CaptionText)
	}
	if strings.Join(got.Hashtags, " ") != "desimemes relatable mondayblues" {
		t.Fatalf("unexpected hashtags: %v", got.Hashtags)
	}
}

func TestGenerateFallsBackToDefaultHashtags(t *testing.T) {
	t.Parallel()

	server := chatServer(t, http.StatusOK, "**CAPTION:** Boss ka email at 6:59pm", nil)
	defer server.Close()

	got, err := newTestCaptioner(server, "key").Generate(context.Background(), testItem)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.CaptionText != "Boss ka email at 6:59pm" {
		t.Fatalf("unexpected caption: %q", got.CaptionText)
	}
	if len(got.Hashtags) != len(fallbackHashtags) {
		t.Fatalf("expected fallback hashtags, got %v", got.Hashtags)
	}
}

func TestGenerateEmptyCaptionIsAnError(t *testing.T) {
	t.Parallel()

	server := chatServer(t, http.StatusOK, "HASHTAGS: #a #b", nil)
	defer server.Close()

	_, err := newTestCaptioner(server, "key").Generate(context.Background(), testItem)
	if !errors.Is(err, domain.ErrEmptyCaption) {
		t.Fatalf("expected ErrEmptyCaption, got %v", err)
	}
}

func TestGenerateMapsAuthFailureToUnavailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := chatServer(t, http.StatusOK, "", &calls)
	defer server.Close()

	_, err := newTestCaptioner(server, "revoked").Generate(context.Background(), testItem)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", calls.Load())
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := chatServer(t, http.StatusBadGateway, "", &calls)
	defer server.Close()

	_, err := newTestCaptioner(server, "key").Generate(context.Background(), testItem)
	if err == nil || errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerateMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewCaptioner(Config{Endpoint: "http://localhost", Model: "m"}, nil)
	if _, err := c.Generate(context.Background(), testItem); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without api key, got %v", err)
	}
}

func TestParseOutputIgnoresNoise(t *testing.T) {
	t.Parallel()

	caption, tags := ParseOutput("Sure! Here you go:\n\nCAPTION: \"Chai > coffee\"\nHASHTAGS: #chai #chai\nCAPTION: second")
	if caption != "Chai > coffee" {
		t.Fatalf("unexpected caption: %q", caption)
	}
	if strings.Join(tags, ",") != "chai" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}
