package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ChuheLin/BatchClipFlow/internal/batch"
	"github.com/ChuheLin/BatchClipFlow/internal/history"
	"github.com/ChuheLin/BatchClipFlow/internal/playback"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port         int
	Session      *project.Session
	Runner       *batch.Runner
	Repository   history.Repository
	Preview      *playback.Preview
	Hub          *EventHub
	Logger       *slog.Logger
	StartTime    time.Time
	DeviceID     string
	BatchContext context.Context
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.BatchContext == nil {
		cfg.BatchContext = context.Background()
	}
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
