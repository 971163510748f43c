package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Endpoints served by the reload server.
const (
	WSPath          = "/__sasswatch/ws"
	ClientPath      = "/__sasswatch/client.js"
	LiveReloadPath  = "/livereload"
	shutdownTimeout = 5 * time.Second
)

// Server notifies connected browsers when the stylesheet output changes.
type Server struct {
	addr string
	hub  *Hub

	mu     sync.Mutex
	server *http.Server
	ln     net.Listener
}

// New creates a Server that will listen on addr.
func New(addr string) *Server {
	return &Server{
		addr: addr,
		hub:  NewHub(),
	}
}

// Handler returns the HTTP handler for every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, s.hub.HandleWS)
	mux.HandleFunc(LiveReloadPath, s.hub.HandleWS)
	mux.HandleFunc(ClientPath, handleClientScript)
	return mux
}

// Start listens on the configured address and serves until ctx is
// cancelled. Connected clients are disconnected on return.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.ln = ln
	s.mu.Unlock()

	go s.hub.Run()
	defer s.hub.Stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("live reload listening on ws://%s%s", ln.Addr(), WSPath)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("live reload server: %w", err)
	}
	return nil
}

// Addr returns the address the server listens on, or the configured address
// before Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// NotifyReload tells every client that path was rewritten. Stylesheets are
// refreshed in place; any other path, or none, reloads the page.
func (s *Server) NotifyReload(path string) {
	s.hub.Broadcast(ReloadMessage(path, isStylesheet(path)))
}

// ClientCount returns the number of connected browsers.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

func isStylesheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".css")
}
