// Package api serves benchmark history over HTTP.
//
// Routes:
//   - GET /           usage text
//   - GET /health     "OK" while the server is healthy
//   - GET /error      always a 400 JSON error, for client testing
//   - GET /runs       stored reports, newest first (?limit=, ?module=)
//   - GET /runs/{id}  one stored report
//
// When GRPCAddr is set the server also runs the standard gRPC health
// service, reporting the same status as /health.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fortiblox/soroscope/pkg/history"
	"github.com/fortiblox/soroscope/pkg/report"
)

// Usage is the body of GET /.
const Usage = "Hello from SoroScope!\n\nUsage: soroscope benchmark [--scenario file.hcl] [--iterations n]\n"

// DefaultListLimit caps /runs when no limit is given.
const DefaultListLimit = 50

// Config holds API server configuration.
type Config struct {
	// Addr is the HTTP listen address (host:port).
	Addr string

	// GRPCAddr is the gRPC health listen address. Empty disables gRPC.
	GRPCAddr string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// EnableCORS enables CORS headers for browser access.
	EnableCORS bool

	// AllowedOrigins specifies allowed CORS origins (empty means all).
	AllowedOrigins []string

	// LogRequests logs every request at debug level.
	LogRequests bool

	Logger *slog.Logger
}

// DefaultConfig returns a default API server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "0.0.0.0:3000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		EnableCORS:   true,
	}
}

// Runs is the read side of the history store.
type Runs interface {
	Get(id uint64) (*report.Report, error)
	List(limit int) ([]*report.Report, error)
	ListByModule(moduleHash string, limit int) ([]*report.Report, error)
}

// Server is the HTTP API server.
type Server struct {
	config Config
	logger *slog.Logger
	runs   Runs

	healthy  bool
	healthMu sync.RWMutex

	server *http.Server
	grpc   *grpc.Server
	health *health.Server

	mu      sync.Mutex
	running bool
}

// New creates a server. runs may be nil, in which case /runs answers 503.
func New(config Config, runs Runs) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		config:  config,
		logger:  logger,
		runs:    runs,
		healthy: true,
		health:  health.NewServer(),
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return s
}

// Handler returns the HTTP handler with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /error", s.handleError)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	return s.logMiddleware(s.corsMiddleware(mux))
}

// Start serves until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	lis, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	var grpcLis net.Listener
	if s.config.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", s.config.GRPCAddr)
		if err != nil {
			lis.Close()
			s.running = false
			s.mu.Unlock()
			return fmt.Errorf("listen %s: %w", s.config.GRPCAddr, err)
		}
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if grpcLis != nil {
		go func() {
			if err := s.ServeGRPC(grpcLis); err != nil {
				s.logger.Error("grpc server failed", "err", err)
			}
		}()
		s.logger.Info("grpc health server started", "addr", grpcLis.Addr().String())
	}

	s.logger.Info("server listening", "addr", lis.Addr().String())
	err = s.server.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeGRPC runs the gRPC health service on lis until Stop.
func (s *Server) ServeGRPC(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop shuts both servers down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.Shutdown()
	s.grpc.GracefulStop()

	if !s.running {
		return nil
	}
	s.running = false
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SetHealthy sets the health status reported by /health and gRPC.
func (s *Server) SetHealthy(healthy bool) {
	s.healthMu.Lock()
	s.healthy = healthy
	s.healthMu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
}

// IsHealthy returns the current health status.
func (s *Server) IsHealthy() bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.healthy
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, Usage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "UNHEALTHY")
		return
	}
	io.WriteString(w, "OK")
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request) {
	writeError(w, BadRequest("Test error"))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, Unavailable("history is disabled"))
		return
	}

	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, BadRequestf("invalid limit %q", v))
			return
		}
		limit = n
	}

	var (
		runs []*report.Report
		err  error
	)
	if module := r.URL.Query().Get("module"); module != "" {
		runs, err = s.runs.ListByModule(module, limit)
	} else {
		runs, err = s.runs.List(limit)
	}
	if errors.Is(err, history.ErrInvalidHash) {
		writeError(w, BadRequest(err.Error()))
		return
	}
	if err != nil {
		s.logger.Error("list runs", "err", err)
		writeError(w, Internal("failed to list runs"))
		return
	}
	if runs == nil {
		runs = []*report.Report{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, Unavailable("history is disabled"))
		return
	}

	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, BadRequestf("invalid run id %q", raw))
		return
	}

	run, err := s.runs.Get(id)
	if errors.Is(err, history.ErrRunNotFound) {
		writeError(w, NotFound(fmt.Sprintf("run %d not found", id)))
		return
	}
	if err != nil {
		s.logger.Error("get run", "id", id, "err", err)
		writeError(w, Internal("failed to load run"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// corsMiddleware adds CORS headers if enabled.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	if !s.config.EnableCORS {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			allowed := len(s.config.AllowedOrigins) == 0
			for _, o := range s.config.AllowedOrigins {
				if o == origin || o == "*" {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	if !s.config.LogRequests {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("grpc request", "method", info.FullMethod, "duration", time.Since(start), "err", err)
	return resp, err
}
