package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/config"
	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/sessions"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 20

// NewServer creates and configures the HTTP server for the studio API.
func NewServer(store *sessions.Store, registry *contexts.Registry, cfg *config.Config, logger *zap.Logger, version string) *http.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handlers{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		version:  version,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/sessions", http.StatusFound)
	})

	mux.HandleFunc("GET /api/sessions", h.HandleSessionList)
	mux.HandleFunc("POST /api/sessions", h.HandleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleSessionArchive)
	mux.HandleFunc("GET /api/sessions/{id}/bdi", h.HandleBDIGet)
	mux.HandleFunc("PUT /api/sessions/{id}/bdi", h.HandleBDIUpdate)
	mux.HandleFunc("GET /sessions/{id}/report", h.HandleReport)

	mux.HandleFunc("GET /api/contexts", h.HandleContextList)
	mux.HandleFunc("POST /api/contexts", h.HandleContextCreate)
	mux.HandleFunc("GET /api/contexts/{name}", h.HandleContextGet)
	mux.HandleFunc("DELETE /api/contexts/{name}", h.HandleContextDelete)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.WebBind, cfg.WebPort),
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("studio API listening", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
