package profiling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Enabled {
		t.Error("profiling should be off by default")
	}
	if !strings.HasPrefix(c.Address, "127.0.0.1:") {
		t.Errorf("Address = %q, want loopback", c.Address)
	}
}

func TestMemoryStatsEndpoint(t *testing.T) {
	s := NewServer(DefaultConfig(), quietLogger())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/memory", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var stats MemoryStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.NumGoroutine <= 0 || stats.HeapSysMB <= 0 {
		t.Errorf("implausible stats: %+v", stats)
	}
}

func TestFreeMemoryRequiresPost(t *testing.T) {
	s := NewServer(DefaultConfig(), quietLogger())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/memory/free", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/debug/memory/free", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "memory_freed") {
		t.Errorf("POST status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestPprofIndex(t *testing.T) {
	s := NewServer(DefaultConfig(), quietLogger())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "goroutine") {
		t.Errorf("status = %d, body missing profile list", w.Code)
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(DefaultConfig(), quietLogger())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/debug/memory")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v after shutdown", err)
	}
}
