// Package api provides the HTTP status API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trust-engine/internal/logging"
	"github.com/trust-engine/internal/models"
)

// Service interfaces for dependency injection and testing

// TrustServiceInterface defines the trust operations the API exposes
type TrustServiceInterface interface {
	DecayedTrustScore(ctx context.Context, recommenderID string) (float64, error)
	FormatTrustReport(ctx context.Context, recommenderID string) string
}

// PerformanceReader defines the token performance lookups the API exposes
type PerformanceReader interface {
	Get(ctx context.Context, tokenAddress string) (*models.TokenPerformance, error)
}

// Server represents the HTTP status server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	trustService TrustServiceInterface
	perfReader   PerformanceReader
	config       *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new status API server instance.
func NewServer(config *ServerConfig, trustService TrustServiceInterface, perfReader PerformanceReader) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		trustService: trustService,
		perfReader:   perfReader,
		config:       config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/recommenders/{id}/trust", s.handleGetTrust).Methods("GET")
	api.HandleFunc("/tokens/{address}/performance", s.handleGetTokenPerformance).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "trust-engine",
	})
}

// Router exposes the configured router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting status API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down status API server")
	return s.httpServer.Shutdown(ctx)
}
