// Package web provides the HTTP status page and command endpoints of the
// mattress-tracker daemon.
package web

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/sweeney/mattress-tracker/internal/dispatch"
	"github.com/sweeney/mattress-tracker/internal/status"
)

// maxBodyBytes bounds a service call body.
const maxBodyBytes = 4 << 10

// Service applies commands received over HTTP.
type Service interface {
	HandleService(cmd dispatch.Command, payload []byte) error
	PressButton(entityID string)
}

// Server serves the status page and command endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	svc        Service
}

// New creates a Server that reads state from the given tracker and applies
// commands through svc.
func New(addr string, tracker *status.Tracker, svc Service) *Server {
	s := &Server{tracker: tracker, svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("POST /api/services/{command}", s.handleService)
	mux.HandleFunc("POST /api/buttons/{entity_id}/press", s.handleButton)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("http: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	cmd, err := dispatch.ParseCommand(r.PathValue("command"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.svc.HandleService(cmd, body); err != nil {
		if errors.Is(err, dispatch.ErrInvalidCall) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("http: %s service: %v", cmd, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	s.svc.PressButton(r.PathValue("entity_id"))

	// Forms on the status page come back to it.
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
