// File: server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/lguibr/bazaar/market"
)

// Server exposes the marketplace over HTTP: catalogue queries and edits, and
// a websocket stream of marketplace events.
type Server struct {
	sim *market.Simulation
	log *logrus.Entry

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// New creates a server for sim.
func New(sim *market.Simulation, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		sim:   sim,
		log:   logger.WithField("component", "server"),
		conns: make(map[*websocket.Conn]bool),
	}
}

// Routes returns the server's handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sellers", s.HandleSellers())
	mux.HandleFunc("/catalogue", s.HandleCatalogue())
	mux.Handle("/subscribe", websocket.Handler(s.HandleSubscribe()))
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down and closes
// every open subscription.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.CloseConnections()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	return err
}
