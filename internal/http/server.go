// README: API gateway; owns the gin engine and the listening http.Server.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fooddash/internal/config"
	"fooddash/internal/http/handlers"
	"fooddash/internal/infra"
)

type ServerDeps struct {
	Order    handlers.OrderService
	Tracking handlers.TrackingService
	Catalog  handlers.CatalogService
	Hub      handlers.RealtimeHub
	Verifier infra.TokenVerifier

	// RateLimiter may be nil, in which case /api is not rate limited.
	RateLimiter redis.Cmdable
	RateLimit   config.RateLimitConfig

	FrontendURL string
	Checks      map[string]handlers.Check
	Log         logrus.FieldLogger
}

type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

func NewServer(addr string, deps ServerDeps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: deps.Log,
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
