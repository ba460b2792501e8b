package httpcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestFetchNoCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // test
	}))
	defer server.Close()

	f := NewFetcher(WithClient(server.Client()), WithLogger(testLogger()))
	body, err := f.Fetch(context.Background(), newRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if got := f.Stats(); got.Misses != 1 || got.Hits != 0 {
		t.Errorf("Stats() = %+v, want 1 miss", got)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(WithClient(server.Client()), WithLogger(testLogger()))
	_, err := f.Fetch(context.Background(), newRequest(t, server.URL))

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
	}
}

func TestFetchRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // test
	}))
	defer server.Close()

	tests := []struct {
		name      string
		attempts  uint
		wantErr   bool
		wantCalls int32
	}{
		{name: "single_attempt", attempts: 1, wantErr: true, wantCalls: 1},
		{name: "two_attempts", attempts: 2, wantErr: false, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls.Store(0)
			f := NewFetcher(WithClient(server.Client()), WithLogger(testLogger()), WithAttempts(tt.attempts))
			_, err := f.Fetch(context.Background(), newRequest(t, server.URL))
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFetchNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(WithClient(server.Client()), WithLogger(testLogger()), WithAttempts(3))
	if _, err := f.Fetch(context.Background(), newRequest(t, server.URL)); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestFetchCachesHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath: %v", err)
	}

	f := NewFetcher(WithClient(server.Client()), WithLogger(testLogger()), WithCache(cache))
	for range 2 {
		_, err := f.Fetch(context.Background(), newRequest(t, server.URL))
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusGone {
			t.Fatalf("error = %v, want HTTP 410", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
	if got := f.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", got)
	}
}

func TestFetchCanceledNotCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // test
	}))
	defer server.Close()

	dir := t.TempDir()

	// First run: the caller gives up before the server answers.
	cache, err := NewWithPath(time.Hour, dir)
	if err != nil {
		t.Fatalf("NewWithPath: %v", err)
	}
	f := NewFetcher(WithClient(server.Client()), WithLogger(testLogger()), WithCache(cache))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	_, err = f.Fetch(ctx, newRequest(t, server.URL))
	cancel()
	if err == nil {
		t.Fatal("expected error from canceled fetch")
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Second run on the same cache directory sees a healthy server.
	cache, err = NewWithPath(time.Hour, dir)
	if err != nil {
		t.Fatalf("NewWithPath: %v", err)
	}
	defer func() { _ = cache.Close() }() //nolint:errcheck // test
	f = NewFetcher(WithClient(server.Client()), WithLogger(testLogger()), WithCache(cache))
	body, err := f.Fetch(context.Background(), newRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Fetch after canceled run: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestFetchTransportErrorNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // test
	}))
	url := server.URL
	server.Close()

	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath: %v", err)
	}
	defer func() { _ = cache.Close() }() //nolint:errcheck // test

	f := NewFetcher(WithLogger(testLogger()), WithCache(cache))
	for range 2 {
		if _, err := f.Fetch(context.Background(), newRequest(t, url)); err == nil {
			t.Fatal("expected connection error")
		}
	}
	if got := f.Stats(); got.Misses != 2 || got.Hits != 0 {
		t.Errorf("Stats() = %+v, want every attempt to miss the cache", got)
	}
}

func TestDomainRateLimiter(t *testing.T) {
	r := NewDomainRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	r.Wait(ctx, "https://a.example/x")
	r.Wait(ctx, "https://b.example/x")
	if elapsed := time.Since(start); elapsed >= 50*time.Millisecond {
		t.Errorf("different domains waited %v", elapsed)
	}

	r.Wait(ctx, "https://a.example/y")
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("same domain waited only %v", elapsed)
	}
}

func TestDomainRateLimiterCanceled(t *testing.T) {
	r := NewDomainRateLimiter(time.Hour)
	r.Wait(context.Background(), "https://a.example/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait(ctx, "https://a.example/")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}
