package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extraction"
	"github.com/zombor/docscan/internal/metrics"
	"github.com/zombor/docscan/internal/scanning"
)

// Scanner is the document pipeline served over HTTP
type Scanner interface {
	ScanCheck(ctx context.Context, image []byte, mimeType string) (*scanning.Result[document.Check], error)
	ScanReceipt(ctx context.Context, image []byte, mimeType string) (*scanning.Result[document.Receipt], error)
	Extractor() extraction.Extractor
}

// IDGenerator generates request IDs
type IDGenerator interface {
	Generate() string
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Options tunes the HTTP surface
type Options struct {
	Version        string
	MaxUploadBytes int64
	MaxConcurrent  int64
	QueueTimeout   time.Duration
	HealthTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 20 << 20
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 4
	}
	if o.QueueTimeout <= 0 {
		o.QueueTimeout = 30 * time.Second
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = 5 * time.Second
	}
	return o
}

// Server handles HTTP requests for document scans
type Server struct {
	scanner Scanner
	metrics *metrics.Registry
	opts    Options
	mux     *http.ServeMux
	sem     *semaphore.Weighted
	ids     IDGenerator
	log     *slog.Logger
	handler http.Handler
}

// NewServer creates a new Server with default mux
func NewServer(scanner Scanner, reg *metrics.Registry, opts Options, logger *slog.Logger) *Server {
	return NewServerWithDeps(scanner, reg, opts, logger, http.NewServeMux(), uuidGenerator{})
}

// NewServerWithDeps creates a new Server with a custom mux and ID generator for testing
func NewServerWithDeps(scanner Scanner, reg *metrics.Registry, opts Options, logger *slog.Logger, mux *http.ServeMux, ids IDGenerator) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	s := &Server{
		scanner: scanner,
		metrics: reg,
		opts:    opts,
		mux:     mux,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		ids:     ids,
		log:     logger,
	}
	s.registerRoutes()
	s.handler = s.withLogging(s.withRecovery(s.corsMiddleware(s.mux)))
	return s
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/checks/scan", s.withConcurrencyLimit(s.handleScanCheck))
	s.mux.HandleFunc("POST /api/receipts/scan", s.withConcurrencyLimit(s.handleScanReceipt))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start serves HTTP on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.QueueTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withLogging assigns a request ID and logs every request
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = s.ids.Generate()
		}
		w.Header().Set("X-Request-ID", id)

		logger := s.log.With("req_id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = scanning.ContextWithLogger(ctx, logger)

		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

// withRecovery turns panics into 500 responses
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("http.panic", "req_id", requestIDFrom(r.Context()), "panic", rec)
				writeError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withConcurrencyLimit bounds the number of scans in progress
func (s *Server) withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.QueueTimeout)
		err := s.sem.Acquire(ctx, 1)
		cancel()
		if err != nil {
			w.Header().Set("Retry-After", "5")
			writeError(w, r, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer s.sem.Release(1)

		next(w, r)
	}
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
