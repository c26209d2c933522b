package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wenyongqd/anniversary/internal/blobstore"
	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/logging"
)

// FileOpener serves stored objects back. FSStore implements it.
type FileOpener interface {
	Open(name string) (*os.File, string, error)
}

// Server is the asset gateway HTTP server.
type Server struct {
	bind      string
	apiToken  string
	apiKey    string
	maxUpload int64
	store     blobstore.Store
	files     FileOpener
	logger    *slog.Logger
	now       func() time.Time

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithClock overrides the clock used for object names.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a server over store. When store can open objects it is also
// served under /files/.
func New(cfg *config.Config, store blobstore.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("server: config and store are required")
	}
	s := &Server{
		bind:      strings.TrimSpace(cfg.Server.Bind),
		apiToken:  strings.TrimSpace(cfg.Server.APIToken),
		apiKey:    strings.TrimSpace(cfg.Generative.APIKey),
		maxUpload: cfg.MaxUploadBytes(),
		store:     store,
		logger:    logging.NewComponentLogger(logger, "gateway-server"),
		now:       time.Now,
	}
	if opener, ok := store.(FileOpener); ok {
		s.files = opener
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", authMiddleware(s.apiToken, s.handleUploadJSON))
	mux.HandleFunc("/api/upload-image", authMiddleware(s.apiToken, s.handleUploadImage))
	mux.HandleFunc("/api/config", authMiddleware(s.apiToken, s.handleConfig))
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.files != nil {
		mux.HandleFunc(blobstore.FilesPrefix, s.handleFile)
	}
	s.handler = requestMiddleware(s.logger, mux)

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("gateway server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.apiToken != ""),
		logging.Bool("serves_files", s.files != nil),
	)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}
