package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(opts Options) *Client {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 10 * time.Millisecond
	}
	return New(opts, nil)
}

func TestFetch_OK(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title> Acme Loans </title></head><body>Upgrade</body></html>`))
	}))
	defer srv.Close()

	res := newTestClient(Options{}).Fetch(context.Background(), srv.URL, "")
	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if res.Title != "Acme Loans" {
		t.Errorf("expected title 'Acme Loans', got %q", res.Title)
	}
	if !strings.Contains(res.HTML, "Upgrade") {
		t.Errorf("body missing from HTML: %q", res.HTML)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("expected user agent %q, got %q", DefaultUserAgent, gotUA)
	}
	if res.FetchedAt.IsZero() {
		t.Error("expected FetchedAt to be set")
	}
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>moved</p>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := newTestClient(Options{}).Fetch(context.Background(), srv.URL+"/old", "")
	if res.URL != srv.URL+"/old" {
		t.Errorf("URL should stay as requested, got %q", res.URL)
	}
	if res.FinalURL != srv.URL+"/new" {
		t.Errorf("expected final URL %q, got %q", srv.URL+"/new", res.FinalURL)
	}
}

func TestFetch_HTTPErrorStatusIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	res := newTestClient(Options{}).Fetch(context.Background(), srv.URL, "")
	if !res.OK() {
		t.Fatalf("a 404 is a response, not a failure: %v", res.Err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", res.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestFetch_RetriesOnceAfterTransportFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Write([]byte("<title>second try</title>"))
	}))
	defer srv.Close()

	res := newTestClient(Options{}).Fetch(context.Background(), srv.URL, "")
	if !res.OK() {
		t.Fatalf("expected retry to succeed, got %v", res.Err)
	}
	if res.Title != "second try" {
		t.Errorf("unexpected title %q", res.Title)
	}
	if n := atomic.LoadInt32(&hits); n < 2 {
		t.Errorf("expected at least 2 requests, got %d", n)
	}
}

func TestFetch_FailureResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestClient(Options{}).Fetch(context.Background(), url, "")
	if res.OK() {
		t.Fatal("expected a failure for a closed server")
	}
	if res.StatusCode != StatusFailed {
		t.Errorf("expected status %d, got %d", StatusFailed, res.StatusCode)
	}
	if res.FinalURL != url {
		t.Errorf("expected final URL to equal the requested URL, got %q", res.FinalURL)
	}
	if res.HTML != "" {
		t.Errorf("expected empty HTML, got %q", res.HTML)
	}

	var fe *FetchError
	if !errors.As(res.Err, &fe) {
		t.Fatalf("expected *FetchError, got %T", res.Err)
	}
	if fe.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", fe.Attempts)
	}
	if !strings.Contains(fe.Error(), url) {
		t.Errorf("error should name the URL: %v", fe)
	}
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		// "café" with é as 0xE9
		w.Write([]byte("<html><head><title>caf\xe9</title></head></html>"))
	}))
	defer srv.Close()

	res := newTestClient(Options{}).Fetch(context.Background(), srv.URL, "")
	if res.Title != "café" {
		t.Errorf("expected decoded title 'café', got %q", res.Title)
	}
}

func TestFetch_CustomUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	newTestClient(Options{UserAgent: "custom/1.0"}).Fetch(context.Background(), srv.URL, "")
	if gotUA != "custom/1.0" {
		t.Errorf("expected custom user agent, got %q", gotUA)
	}
}

type stubRenderer struct {
	res   *Result
	err   error
	calls int
}

func (s *stubRenderer) Render(ctx context.Context, url, screenshotPath string) (*Result, error) {
	s.calls++
	return s.res, s.err
}

func TestFetch_UsesRenderer(t *testing.T) {
	r := &stubRenderer{res: &Result{URL: "https://acme.test", FinalURL: "https://acme.test/", StatusCode: 200, HTML: "<p>rendered</p>", Screenshot: "shot.png"}}

	res := newTestClient(Options{Renderer: r}).Fetch(context.Background(), "https://acme.test", "shot.png")
	if r.calls != 1 {
		t.Fatalf("expected renderer to be called once, got %d", r.calls)
	}
	if !res.Rendered || res.HTML != "<p>rendered</p>" || res.Screenshot != "shot.png" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFetch_RendererFailureFallsBackToHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<title>plain</title>"))
	}))
	defer srv.Close()

	r := &stubRenderer{err: errors.New("chrome not found")}
	res := newTestClient(Options{Renderer: r}).Fetch(context.Background(), srv.URL, "shot.png")
	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Rendered {
		t.Error("fallback result must not be marked rendered")
	}
	if res.Screenshot != "" {
		t.Errorf("fallback result has no screenshot, got %q", res.Screenshot)
	}
	if res.Title != "plain" {
		t.Errorf("unexpected title %q", res.Title)
	}
}
