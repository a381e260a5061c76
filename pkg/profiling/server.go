// Package profiling exposes pprof and runtime memory statistics on a
// separate debug listener, kept off the public API port.
package profiling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/debug"
	"time"
)

// Config controls the debug listener
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// DefaultConfig keeps the listener off and bound to loopback when enabled
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Address: "127.0.0.1:6060",
	}
}

// MemoryStats is a snapshot of the runtime allocator
type MemoryStats struct {
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	HeapSysMB     float64 `json:"heap_sys_mb"`
	HeapInuseMB   float64 `json:"heap_inuse_mb"`
	NumGoroutine  int     `json:"num_goroutine"`
	NumGC         uint32  `json:"num_gc"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
}

// Server serves the debug endpoints
type Server struct {
	config Config
	logger *slog.Logger
	server *http.Server
}

// NewServer builds the debug server; nothing listens until Serve
func NewServer(config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{config: config, logger: logger.With("component", "profiling")}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /debug/memory", s.handleMemoryStats)
	mux.HandleFunc("POST /debug/memory/free", s.handleFreeMemory)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Handler returns the debug mux
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("profiling endpoints enabled", "address", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ReadMemoryStats samples the runtime
func ReadMemoryStats() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	const mb = 1024 * 1024
	return MemoryStats{
		HeapAllocMB:   float64(ms.HeapAlloc) / mb,
		HeapSysMB:     float64(ms.HeapSys) / mb,
		HeapInuseMB:   float64(ms.HeapInuse) / mb,
		NumGoroutine:  runtime.NumGoroutine(),
		NumGC:         ms.NumGC,
		GCCPUFraction: ms.GCCPUFraction,
	}
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ReadMemoryStats()); err != nil {
		s.logger.Warn("failed to write memory stats", "error", err)
	}
}

func (s *Server) handleFreeMemory(w http.ResponseWriter, r *http.Request) {
	debug.FreeOSMemory()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "memory_freed"}); err != nil {
		s.logger.Warn("failed to write free memory response", "error", err)
	}
}
