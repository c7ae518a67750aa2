package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"MemeFarm/internal/domain"
)

func TestPublishCreatesAndPublishesContainer(t *testing.T) {
	t.Parallel()

	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("access_token") != "tok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/acct/media":
			if r.PostForm.Get("image_url") != "https://i.redd.it/a.jpg" || !strings.HasPrefix(r.PostForm.Get("caption"), "chai time") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"id":"container-1"}`))
		case "/acct/media_publish":
			if r.PostForm.Get("creation_id") != "container-1" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"id":"media-9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewPublisher(server.URL+"/", "tok", server.Client())
	id, err := p.Publish(context.Background(), "https://i.redd.it/a.jpg", "chai time\n\n#desimemes", "acct")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "media-9" {
		t.Fatalf("unexpected media id %q", id)
	}
	if strings.Join(paths, ",") != "/acct/media,/acct/media_publish" {
		t.Fatalf("unexpected call sequence: %v", paths)
	}
}

func TestPublishExpiredTokenIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`))
	}))
	defer server.Close()

	_, err := NewPublisher(server.URL, "expired", server.Client()).Publish(context.Background(), "https://i.redd.it/a.jpg", "x", "acct")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	var gerr *GraphError
	if !errors.As(err, &gerr) || gerr.Code != 190 {
		t.Fatalf("expected graph error 190, got %v", err)
	}
}

func TestPublishRejectedMediaIsItemError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/acct/media" {
			_, _ = w.Write([]byte(`{"id":"c1"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Media ID is not available","type":"OAuthException","code":9007}}`))
	}))
	defer server.Close()

	_, err := NewPublisher(server.URL, "tok", server.Client()).Publish(context.Background(), "https://i.redd.it/a.jpg", "x", "acct")
	if err == nil || errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected per-item error, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish container c1") {
		t.Fatalf("error should name the container: %v", err)
	}
}

func TestPublishMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewPublisher("", "", nil).Publish(context.Background(), "https://i.redd.it/a.jpg", "x", "acct")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without token, got %v", err)
	}
}

func TestPublishTruncatesCaptionByCharacter(t *testing.T) {
	t.Parallel()

	var sent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.URL.Path {
		case "/acct/media":
			sent = r.PostForm.Get("caption")
			_, _ = w.Write([]byte(`{"id":"container-1"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"media-1"}`))
		}
	}))
	defer server.Close()

	caption := strings.Repeat("x", maxCaptionLen-1) + "😂 #desimemes"
	p := NewPublisher(server.URL, "tok", server.Client())
	if _, err := p.Publish(context.Background(), "https://i.redd.it/a.jpg", caption, "acct"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !utf8.ValidString(sent) {
		t.Fatalf("caption sent with invalid UTF-8, tail=%q", sent[len(sent)-4:])
	}
	if n := utf8.RuneCountInString(sent); n != maxCaptionLen {
		t.Fatalf("expected %d characters, got %d", maxCaptionLen, n)
	}
	if !strings.HasSuffix(sent, "x😂") {
		t.Fatalf("emoji at the boundary must be kept whole, tail=%q", sent[len(sent)-8:])
	}

	// Non-ASCII captions under the character limit are not cut.
	short := strings.Repeat("é", maxCaptionLen)
	if _, err := p.Publish(context.Background(), "https://i.redd.it/a.jpg", short, "acct"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if sent != short {
		t.Fatalf("caption of %d characters was altered", maxCaptionLen)
	}
}
