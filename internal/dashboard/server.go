// Package dashboard serves a read-only JSON status API over the engine:
// current snapshot, ranked recommendations, and account state.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/models"
)

// EngineView is the read surface the server needs from the engine.
type EngineView interface {
	Snapshot() *models.PortfolioSnapshot
	GetRecommendations(emergency bool, emergencyIDs []int64) []models.CloseOpportunity
}

// Config holds status server settings.
type Config struct {
	Port      int
	AuthToken string
}

// Server is the chi-backed status API.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	engine    EngineView
	broker    broker.Broker
	logger    *logrus.Logger
	port      int
	authToken string
}

// NewServer creates a status server over the engine and broker.
func NewServer(cfg Config, engine EngineView, b broker.Broker, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		engine:    engine,
		broker:    b,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/snapshot", s.handleSnapshot)
	s.router.Get("/api/recommendations", s.handleRecommendations)
	s.router.Get("/api/account", s.handleAccount)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.port).Info("status server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("encoding status response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.engine.Snapshot())
}

func (s *Server) handleRecommendations(w http.ResponseWriter, _ *http.Request) {
	recs := s.engine.GetRecommendations(false, nil)
	if recs == nil {
		recs = []models.CloseOpportunity{}
	}
	s.writeJSON(w, recs)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.broker.GetAccountSnapshot()
	if err != nil {
		http.Error(w, fmt.Sprintf("account fetch failed: %v", err), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, acct)
}
