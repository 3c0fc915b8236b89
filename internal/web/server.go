// Package web exposes the ledger's record API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/config"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/web/middleware"
)

// maxBodyBytes caps record payloads.
const maxBodyBytes = 1 << 20

// RecordService is the part of core.Service the handlers need.
type RecordService interface {
	Collection(kind string) (core.Collection, error)
	Counts(ctx context.Context) (map[string]int64, error)
	ListKinds() []core.TableInfo
	AttachmentService
}

// AttachmentService stores files against income and expense records.
type AttachmentService interface {
	ListAttachments(ctx context.Context, kind, recordID string) ([]core.Attachment, error)
	AddAttachments(ctx context.Context, kind, recordID string, uploads []core.Upload) ([]core.Attachment, error)
	Attachment(ctx context.Context, id string) (core.Attachment, error)
	OpenAttachment(ctx context.Context, id string) (core.Attachment, io.ReadSeekCloser, error)
	DeleteAttachment(ctx context.Context, id string) (bool, error)
}

// Resetter wipes every record kind.
type Resetter interface {
	FactoryReset(ctx context.Context) error
}

// Server is the HTTP server for the ledger API.
type Server struct {
	service RecordService
	reset   Resetter
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service RecordService, reset Resetter, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		reset:   reset,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(middleware.CORS(s.cfg.Security.CORSAllowedOrigins))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleStatus)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/version", s.handleVersion)
		r.Post("/factory-reset", s.handleFactoryReset)

		// GET /api/{kind}.csv is served by handleList
		r.Get("/{kind}", s.handleList)
		r.Post("/{kind}", s.handleUpsert)
		r.Delete("/{kind}", s.handleClear)

		r.Get("/{kind}/{id}", s.handleGet)
		r.Put("/{kind}/{id}", s.handleUpsert)
		r.Delete("/{kind}/{id}", s.handleRemove)

		r.Get("/{kind}/{id}/attachments", s.handleListAttachments)
		r.Post("/{kind}/{id}/attachments", s.handleUploadAttachments)

		r.Get("/attachments/{attID}", s.handleGetAttachment)
		r.Delete("/attachments/{attID}", s.handleDeleteAttachment)
		r.Get("/attachments/{attID}/download", s.handleDownloadAttachment)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      int           // requests per window
	window    time.Duration // time window
	lastSweep time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		rate:      rate,
		window:    window,
		lastSweep: time.Now(),
	}
}

// sweep drops visitors idle for two windows. Called with mu held.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = now
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by client IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			respondError(w, r, fmt.Errorf("rate limit exceeded for %s", ip), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
