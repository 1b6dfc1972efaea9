package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/gateway"
	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/monitor"
	"github.com/hubenschmidt/go-orchestra/server/store"
	"github.com/hubenschmidt/go-orchestra/tools"
)

// CapabilityLister lists the agents the smart-agent backend runs.
type CapabilityLister interface {
	Capabilities(ctx context.Context) (*agents.Capabilities, error)
}

// Config configures a new Server instance.
type Config struct {
	Gateway      *gateway.Gateway
	Capabilities CapabilityLister
	Registry     *tools.Registry
	Store        store.ConversationStore // Optional: enables the conversation endpoints
	Logger       zerolog.Logger
}

// Server is the HTTP surface of the orchestration layer.
type Server struct {
	gateway      *gateway.Gateway
	capabilities CapabilityLister
	registry     *tools.Registry
	store        store.ConversationStore
	logger       zerolog.Logger
}

func New(cfg Config) *Server {
	return &Server{
		gateway:      cfg.Gateway,
		capabilities: cfg.Capabilities,
		registry:     cfg.Registry,
		store:        cfg.Store,
		logger:       logging.Component(cfg.Logger, "server"),
	}
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", monitor.Handler())

	s.handle(mux, "GET /tools", s.handleTools)
	s.handle(mux, "POST /chat", s.handleChat)
	s.handle(mux, "POST /smart-agents", s.handleSmartAgents)
	s.handle(mux, "GET /smart-agents", s.handleCapabilities)
	s.handle(mux, "POST /supreme-orchestrator", s.handleSupreme)

	s.handle(mux, "GET /conversations", s.handleConversationList)
	s.handle(mux, "GET /conversations/{id}", s.handleConversationGet)
	s.handle(mux, "DELETE /conversations/{id}", s.handleConversationDelete)
	s.handle(mux, "GET /knowledge", s.handleKnowledgeList)

	return corsMiddleware(mux)
}

// handle registers h with request metrics and access logging.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		monitor.ObserveRequest(pattern, rec.status, elapsed)
		s.logger.Debug().
			Str("route", pattern).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
