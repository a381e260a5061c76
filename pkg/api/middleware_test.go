package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func TestRequestIDGenerated(t *testing.T) {
	server, _ := newTestServer(t, DefaultServerConfig(), nil)

	w := serve(server, httptest.NewRequest(http.MethodGet, "/pcap/files/none", nil))

	id := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("Expected a UUID request ID, got %q", id)
	}
	if body := decodeBody(t, w); body["request_id"] != id {
		t.Errorf("Error body should echo the request ID, got %v", body["request_id"])
	}
}

func TestRequestIDPropagated(t *testing.T) {
	server, _ := newTestServer(t, DefaultServerConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	w := serve(server, req)
	if got := w.Header().Get(RequestIDHeader); got != "trace-42" {
		t.Errorf("Expected caller ID, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>abc</script>")
	w = serve(server, req)
	if got := w.Header().Get(RequestIDHeader); got != "scriptabcscript" {
		t.Errorf("Expected sanitized ID, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("a", 300))
	w = serve(server, req)
	if got := w.Header().Get(RequestIDHeader); len(got) != 128 {
		t.Errorf("Expected ID truncated to 128, got %d", len(got))
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	server := &Server{logger: slog.New(slog.NewTextHandler(&logs, nil))}

	handler := requestIDMiddleware(server.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pcap/files", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["code"] != "PANIC_RECOVERED" || body["detail"] != "Internal server error" {
		t.Errorf("Unexpected body %v", body)
	}
	if !strings.Contains(logs.String(), "panic recovered") {
		t.Error("Panic should be logged")
	}
}

func TestRecoveryMiddlewareRepanicsAbort(t *testing.T) {
	server := &Server{logger: quietLogger()}
	handler := server.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	server, _ := newTestServer(t, DefaultServerConfig(), nil,
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	serve(server, httptest.NewRequest(http.MethodGet, "/pcap/files/none.pcap", nil))

	out := logs.String()
	for _, want := range []string{`"msg":"request"`, `"status":404`, `"path":"/pcap/files/none.pcap"`, `"method":"GET"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Access log missing %s in %s", want, out)
		}
	}
}

func TestCORS(t *testing.T) {
	server, _ := newTestServer(t, DefaultServerConfig(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/pcap/files", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	w := serve(server, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Error("DELETE should be allowed")
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	config := DefaultServerConfig()
	config.CORSOrigins = []string{"https://dashboard.example"}
	server, _ := newTestServer(t, config, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	w := serve(server, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example" {
		t.Errorf("Expected echoed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://other.example")
	w = serve(server, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Unknown origin should not be allowed, got %q", got)
	}
}

func TestCORSDisabled(t *testing.T) {
	config := DefaultServerConfig()
	config.EnableCORS = false
	server, _ := newTestServer(t, config, nil)

	w := serve(server, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS headers should be absent, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	config := DefaultServerConfig()
	config.RateLimit = RateLimitConfig{RequestsPerSecond: 1, Burst: 2}
	server, _ := newTestServer(t, config, nil)

	request := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		return serve(server, req)
	}

	for i := 0; i < 2; i++ {
		if w := request("192.0.2.10:4000"); w.Code != http.StatusOK {
			t.Fatalf("Request %d within burst got %d", i, w.Code)
		}
	}

	w := request("192.0.2.10:4001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if body := decodeBody(t, w); body["code"] != "RATE_LIMITED" || body["detail"] != "Too many requests" {
		t.Errorf("Unexpected body %v", body)
	}

	// Other clients have their own bucket
	if w := request("198.51.100.7:4000"); w.Code != http.StatusOK {
		t.Errorf("Different client should not be limited, got %d", w.Code)
	}
}

func TestRateLimiterSharesBucketPerClient(t *testing.T) {
	limiter := newIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, quietLogger())
	t.Cleanup(limiter.stop)

	const workers = 32
	got := make([]*rate.Limiter, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = limiter.get("192.0.2.44")
		}(i)
	}
	wg.Wait()

	for i, l := range got {
		if l != got[0] {
			t.Fatalf("Worker %d got a different bucket for the same client", i)
		}
	}
}

func TestRateLimiterHitExtendsExpiry(t *testing.T) {
	limiter := newIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1}, quietLogger())
	t.Cleanup(limiter.stop)

	first := limiter.get("192.0.2.45")
	before := limiter.cache.Get("192.0.2.45").ExpiresAt()
	time.Sleep(5 * time.Millisecond)

	if limiter.get("192.0.2.45") != first {
		t.Fatal("Expected the same bucket on a hit")
	}
	if after := limiter.cache.Get("192.0.2.45").ExpiresAt(); !after.After(before) {
		t.Errorf("Expected a hit to push expiry past %v, got %v", before, after)
	}
}

func TestRequestIDFromContextEmpty(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("Expected empty ID, got %q", id)
	}
}

func TestClientAddress(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"unix-socket", "unix-socket"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientAddress(req); got != tt.want {
			t.Errorf("clientAddress(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
