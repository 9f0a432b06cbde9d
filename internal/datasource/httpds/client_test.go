package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(maxRetries int) *Client {
	c := NewClient(Config{MaxRetries: maxRetries, InitialBackoff: time.Millisecond})
	c.sleep = func(time.Duration) {} // deterministic, fast
	return c
}

func TestGetOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "platform,download_ts\n")
	}))
	defer srv.Close()

	resp, err := newTestClient(0).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if string(b) != "platform,download_ts\n" {
		t.Errorf("body = %q", b)
	}
}

func TestGetRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	resp, err := newTestClient(3).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGetNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestClient(3).Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not retry)", got)
	}
}

func TestSourceOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/signups.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "user_id\n")
	}))
	defer srv.Close()

	src := NewSource(newTestClient(0), JoinURL(srv.URL+"/data/", "signups.csv"))
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	b, _ := io.ReadAll(rc)
	if string(b) != "user_id\n" {
		t.Errorf("body = %q", b)
	}
}

func TestJoinURL(t *testing.T) {
	cases := []struct{ base, name, want string }{
		{"http://x/data", "a.csv", "http://x/data/a.csv"},
		{"http://x/data/", "a.csv", "http://x/data/a.csv"},
		{"http://x/data/", "/a.csv", "http://x/data/a.csv"},
	}
	for _, tc := range cases {
		if got := JoinURL(tc.base, tc.name); got != tc.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tc.base, tc.name, got, tc.want)
		}
	}
}
