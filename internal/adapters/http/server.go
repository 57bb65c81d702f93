// Package http assembles the chi router that fronts the voice
// authentication service: middleware chain, route table, and the
// net/http.Server lifecycle around it.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/handlers"
	"github.com/Hjhirp/voice-auth-microservice/internal/adapters/http/middleware"
	"github.com/Hjhirp/voice-auth-microservice/internal/config"
	"github.com/Hjhirp/voice-auth-microservice/internal/orchestrator"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	repo       ports.UserRepository
	extractor  ports.EmbeddingExtractor
	orch       *orchestrator.Orchestrator
}

func NewServer(cfg *config.Config, repo ports.UserRepository, extractor ports.EmbeddingExtractor, orch *orchestrator.Orchestrator) *Server {
	s := &Server{
		config:    cfg,
		repo:      repo,
		extractor: extractor,
		orch:      orch,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.CORSOrigins))
	r.Use(middleware.Metrics)
	r.Use(middleware.CallID)

	healthHandler := handlers.NewHealthHandler(s.repo, s.extractor)
	r.Get("/healthz", healthHandler.Handle)
	r.Get("/healthz/detailed", healthHandler.HandleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	enrollHandler := handlers.NewEnrollHandler(s.orch)
	verifyHandler := handlers.NewVerifyHandler(s.orch)
	auditHandler := handlers.NewAuditHandler(s.repo)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/enroll", enrollHandler.Enroll)
		r.Post("/verify", verifyHandler.Verify)
		r.Post("/webhook/verify", verifyHandler.Webhook)
		r.Get("/users/{phone}/auth-history", auditHandler.AuthHistory)
	})

	s.router = r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout: Verify holds the connection open for live capture
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Println("shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
