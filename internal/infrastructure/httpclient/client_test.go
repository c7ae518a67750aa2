package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSONDecodesReply(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("X-Key") != "k" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := PostJSON(context.Background(), server.Client(), server.URL, map[string]string{"X-Key": "k"}, map[string]string{"a": "b"}, &out)
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.ID != "42" {
		t.Fatalf("unexpected id %q", out.ID)
	}
}

func TestPostJSONStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(" revoked \n"))
	}))
	defer server.Close()

	err := PostJSON(context.Background(), server.Client(), server.URL, nil, nil, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !statusErr.Unauthorized() || statusErr.Temporary() || statusErr.Body != "revoked" {
		t.Fatalf("unexpected classification: %+v", statusErr)
	}
	if IsRetriable(err) {
		t.Fatalf("403 must not be retried")
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := &StatusError{Code: http.StatusBadRequest, Status: "400 Bad Request"}
	err := Retry(context.Background(), 3, time.Millisecond, IsRetriable, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single call with permanent error, got %d calls, err %v", calls, err)
	}
}

func TestRetryRecoversFromTemporaryError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, IsRetriable, func() error {
		calls++
		if calls < 3 {
			return &StatusError{Code: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got %d calls, err %v", calls, err)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Millisecond, nil, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
