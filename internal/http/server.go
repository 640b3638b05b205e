package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finbook/internal/middleware/trace"
	"finbook/internal/services"
	"finbook/internal/upload"
)

// Server exposes the bookkeeping API over JSON. It embeds http.Server
// so callers use ListenAndServe and Shutdown directly.
type Server struct {
	http.Server
	transactions *services.TransactionService
	imports      *services.ImportService
	uploads      *upload.Store
	tracer       *trace.Middleware
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, transactions *services.TransactionService, imports *services.ImportService, uploads *upload.Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		transactions: transactions,
		imports:      imports,
		uploads:      uploads,
		tracer:       trace.NewMiddleware(extractClientIP),
		rateLimiter:  newRateLimiter(60, time.Minute),
	}

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.withRateLimit(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.withRateLimit(s.handleDeleteTransaction))
	mux.HandleFunc("POST /transactions/import", s.withRateLimit(s.handleImportTransactions))
	mux.HandleFunc("GET /balance", s.handleBalance)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(secureHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// withRateLimit guards write endpoints against bursts from a single client.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// Shutdown stops the rate limiter cleanup goroutine and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
