package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/andymarkow/accountmart/internal/market"
	"github.com/andymarkow/accountmart/internal/server/router"
	"github.com/andymarkow/accountmart/internal/storage"
)

type Server struct {
	srv *http.Server
	log *slog.Logger
}

type Config struct {
	serverAddr   string
	jwtSecretKey []byte
	logger       *slog.Logger
}

type Option func(c *Config)

func WithServerAddr(addr string) Option {
	return func(c *Config) {
		c.serverAddr = addr
	}
}

func WithJWTSecretKey(secret []byte) Option {
	return func(c *Config) {
		c.jwtSecretKey = secret
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func NewServer(store storage.Storage, engine *market.Engine, opts ...Option) (*Server, error) {
	cfg := &Config{
		serverAddr: "0.0.0.0:8080",
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.jwtSecretKey) == 0 {
		return nil, errors.New("jwt secret key is empty")
	}

	r := router.NewRouter(store, engine,
		router.WithLogger(cfg.logger),
		router.WithSecret(cfg.jwtSecretKey),
	)

	srv := &http.Server{
		Addr:              cfg.serverAddr,
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		srv: srv,
		log: cfg.logger.With(slog.String("module", "server")),
	}, nil
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(fmt.Sprintf("Starting server on %s", s.srv.Addr))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Gracefully shutting down server...")

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}

	return nil
}
