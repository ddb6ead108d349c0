package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budgetmind/internal/budget"
	"budgetmind/internal/cache"
	"budgetmind/internal/core"
	applog "budgetmind/internal/log"
)

// Ports the server consumes. Backends are the storage repository (memory
// or SQLite); publishers are the AMQP client or nil when running without
// a broker.
type (
	EntryStore interface {
		AddEntry(ctx context.Context, e core.ManualEntry) (string, error)
		EntriesByUser(ctx context.Context, userID string) ([]core.ManualEntry, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, id string) (*core.User, error)
	}

	NoteReader interface {
		NotesByUser(ctx context.Context, userID string) ([]core.Note, error)
	}

	TransactionReader interface {
		RecentTransactions(ctx context.Context, userID string, days int) ([]core.Transaction, error)
	}

	// EntryPublisher hands a recorded entry to the worker queue.
	EntryPublisher interface {
		PublishEntryRecorded(ctx context.Context, entryID, userID, entryType string) error
	}

	// ScanPublisher hands a scan request to the worker queue.
	ScanPublisher interface {
		PublishScanRequest(ctx context.Context, lookbackDays int, requestedBy string) (string, error)
	}

	// Recalculator re-evaluates one user's spending flag. Used as the
	// synchronous fallback when no broker is configured.
	Recalculator interface {
		Recalc(ctx context.Context, userID string) error
	}

	// ScanRunner runs one vulnerability scan. Synchronous fallback for
	// broker-less deployments.
	ScanRunner interface {
		Scan(ctx context.Context, lookbackDays int) ([]core.VulnerabilitySnapshot, error)
	}
)

type Server struct {
	http.Server

	users   UserReader
	entries EntryStore
	notes   NoteReader
	txns    TransactionReader

	entryPub EntryPublisher
	scanPub  ScanPublisher
	recalc   Recalculator
	scanner  ScanRunner

	defaultLookbackDays int

	rateLimiter *rateLimiter
	windowCache *cache.LRUCache[budget.Window]
	logger      *applog.StructuredLogger

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// Options carries the optional collaborators and tuning knobs.
type Options struct {
	EntryPublisher      EntryPublisher
	ScanPublisher       ScanPublisher
	Recalculator        Recalculator
	Scanner             ScanRunner
	DefaultLookbackDays int
	WindowCacheSize     int
	WindowCacheTTL      time.Duration
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, users UserReader, entries EntryStore, notes NoteReader, txns TransactionReader, opts Options) *Server {
	if opts.DefaultLookbackDays <= 0 {
		opts.DefaultLookbackDays = 30
	}
	if opts.WindowCacheSize <= 0 {
		opts.WindowCacheSize = 256
	}
	if opts.WindowCacheTTL <= 0 {
		opts.WindowCacheTTL = time.Minute
	}

	mux := http.NewServeMux()
	lg := applog.New(applog.Config{Component: applog.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(lg)(mux),
		},
		users:               users,
		entries:             entries,
		notes:               notes,
		txns:                txns,
		entryPub:            opts.EntryPublisher,
		scanPub:             opts.ScanPublisher,
		recalc:              opts.Recalculator,
		scanner:             opts.Scanner,
		defaultLookbackDays: opts.DefaultLookbackDays,
		rateLimiter:         newRateLimiter(),
		windowCache:         cache.NewLRUCache[budget.Window](opts.WindowCacheSize, opts.WindowCacheTTL),
		cacheManager:        cache.NewManager(),
		logger: applog.NewStructuredLogger(lg),
	}

	s.cacheManager.Register(s.windowCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/api/entry", s.withSecurityHeaders(s.handleCreateEntry))
	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("/api/window", s.withSecurityHeaders(s.handleWindow))
	mux.HandleFunc("/api/notes", s.withSecurityHeaders(s.handleNotes))
	mux.HandleFunc("/api/scan", s.withSecurityHeaders(s.handleScan))

	return s
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}
