// Package api provides HTTP handlers and the main API server logic for Clario.
//
// It exposes authenticated endpoints for reading assessment state, running
// conversational turns as NDJSON event streams, and uploading documents for
// answer extraction.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/clarioapp/clario/internal/auth"
	"github.com/clarioapp/clario/internal/extract"
	"github.com/clarioapp/clario/internal/flow"
	"github.com/clarioapp/clario/internal/models"
	"github.com/clarioapp/clario/internal/store"
)

// Default server timeouts. WriteTimeout stays generous because chat replies
// stream for as long as the collaborator generates.
const (
	DefaultAddr           = ":8080"
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 5 * time.Minute
	DefaultMaxUploadBytes = 10 << 20
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address. Empty selects DefaultAddr.
	Addr string
	// MaxUploadBytes caps document upload size. Non-positive selects the default.
	MaxUploadBytes int64
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithMaxUploadBytes sets the document upload size cap.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Opts) { o.MaxUploadBytes = n }
}

// Server wires the turn processor, store, extractor, and identity provider
// behind the HTTP surface.
type Server struct {
	opts      Opts
	router    *mux.Router
	processor *flow.TurnProcessor
	store     store.Store
	extractor extract.Extractor
	provider  auth.Provider
	httpSrv   *http.Server
}

// NewServer creates an API server with its dependencies.
func NewServer(processor *flow.TurnProcessor, st store.Store, extractor extract.Extractor, provider auth.Provider, options ...Option) *Server {
	opts := Opts{Addr: DefaultAddr, MaxUploadBytes: DefaultMaxUploadBytes}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		opts:      opts,
		processor: processor,
		store:     st,
		extractor: extractor,
		provider:  provider,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the routed handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requestIDMiddleware, s.authMiddleware)
	api.HandleFunc("/assessment", s.assessmentHandler).Methods(http.MethodGet)
	api.HandleFunc("/assessment/upload", s.uploadHandler).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.chatHandler).Methods(http.MethodPost)
	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.opts.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		slog.Info("Server.Run: API server stopped")
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

type contextKey string

const (
	identityContextKey  contextKey = "identity"
	requestIDContextKey contextKey = "requestID"
)

// requestIDMiddleware tags every request with an id for log correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware resolves the caller identity and rejects unauthenticated
// requests before any handler runs.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.provider.Authenticate(r)
		if err != nil {
			slog.Warn("Server.authMiddleware: authentication failed", "error", err, "path", r.URL.Path, "requestID", requestID(r))
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Authentication required"))
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the authenticated identity stored by authMiddleware.
func identityFrom(r *http.Request) auth.Identity {
	identity, _ := r.Context().Value(identityContextKey).(auth.Identity)
	return identity
}

// requestID returns the request id stored by requestIDMiddleware.
func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}
