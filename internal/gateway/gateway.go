// ABOUTME: HTTP server wiring for the parrot gateway
// ABOUTME: Routes, middleware, lifecycle and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Jegama/calvinist-parrot-sub000/internal/auth"
	"github.com/Jegama/calvinist-parrot-sub000/internal/config"
	"github.com/Jegama/calvinist-parrot-sub000/internal/metrics"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

const shutdownTimeout = 10 * time.Second

// Gateway serves the conversational HTTP API
type Gateway struct {
	config     *config.Config
	store      store.Store
	runner     *turn.Runner
	resolver   *auth.Resolver
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway around an already-wired turn runner
func New(cfg *config.Config, st store.Store, runner *turn.Runner, resolver *auth.Resolver, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		config:   cfg,
		store:    st,
		runner:   runner,
		resolver: resolver,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", g.handleChat)
	mux.HandleFunc("/api/sessions", g.handleGetSession)
	mux.HandleFunc("/api/sessions/view", g.handleSessionView)
	mux.HandleFunc("/healthz", g.handleHealth)
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	g.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: g.instrument(mux),
	}
	return g
}

// Handler exposes the configured handler, mainly for tests
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (g *Gateway) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		g.logger.Info("shutting down http server")
		return g.httpServer.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// statusWriter captures the response status for instrumentation while
// still exposing Flush to streaming handlers
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	sw.status = statusCode
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *statusWriter) Flush() {
	if flusher, ok := sw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// instrument records request counts per method, path and status
func (g *Gateway) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", sw.status))
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}
