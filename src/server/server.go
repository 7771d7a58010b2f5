// Package server exposes the HTTP surface: the streaming chat endpoint,
// the out-of-band permission decision endpoint, and session management.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chatgate/src/executor"
	"chatgate/src/permission"
	"chatgate/src/store"
)

// Server holds the handler dependencies.
type Server struct {
	store    store.Store
	registry *permission.Registry
	service  *executor.Service
	logger   *slog.Logger
}

// Config holds construction parameters for the server.
type Config struct {
	Store    store.Store
	Registry *permission.Registry
	Service  *executor.Service
	Logger   *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		store:    cfg.Store,
		registry: cfg.Registry,
		service:  cfg.Service,
		logger:   cfg.Logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/messages", s.handleGetMessages).Methods(http.MethodGet)
	r.HandleFunc("/api/permissions/decision", s.handleDecision).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return corsMiddleware(r)
}

// corsMiddleware mirrors the permissive policy the desktop client
// expects: any origin, preflight answered inline.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
