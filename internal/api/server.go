// Package api serves one open project over a local HTTP interface for a
// desktop front-end.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tlcut/internal/logging"
	"github.com/forPelevin/tlcut/internal/pipeline"
)

const Version = "0.1.0"

type Server struct {
	httpServer *http.Server
	logger     *logrus.Entry
}

type ServerConfig struct {
	Port int
	// Token is the bearer token every route except /health requires.
	Token     string
	App       *pipeline.App
	Project   *pipeline.Project
	Logger    *logrus.Logger
	StartTime time.Time
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:     NewRouter(cfg),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		logger: cfg.Logger.WithField("component", "api"),
	}
}

func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting HTTP server")
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
