// File: server/websocket.go
package server

import (
	"io"
	"runtime/debug"

	"golang.org/x/net/websocket"
)

// subscribeBuffer is the number of events a slow client may lag behind
// before it starts missing events.
const subscribeBuffer = 128

// HandleSubscribe streams marketplace events to the client as JSON until the
// client disconnects. The optional topics query parameter is a regular
// expression over event kinds.
func (s *Server) HandleSubscribe() func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		addr := ws.Request().RemoteAddr
		log := s.log.WithField("remote", addr)
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("panic in subscription: %v\n%s", r, debug.Stack())
			}
			s.CloseConnection(ws)
		}()

		bus := s.sim.Bus()
		if bus == nil {
			log.Warn("No event bus, closing subscription")
			return
		}
		sub, err := bus.Subscribe(ws.Request().URL.Query().Get("topics"), subscribeBuffer)
		if err != nil {
			log.WithError(err).Warn("Bad topics pattern")
			_ = websocket.JSON.Send(ws, map[string]string{"error": err.Error()})
			return
		}
		defer sub.Cancel()

		s.OpenConnection(ws)
		log.Info("Subscriber connected")

		closed := make(chan struct{})
		go s.readLoop(ws, closed)

		for {
			select {
			case <-closed:
				log.Info("Subscriber disconnected")
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := websocket.JSON.Send(ws, ev); err != nil {
					log.WithError(err).Debug("Send failed, dropping subscriber")
					return
				}
			}
		}
	}
}

// readLoop drains the client side of the socket. Clients have nothing to say
// on a subscription, so any read error or EOF means the client is gone.
func (s *Server) readLoop(ws *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	buffer := make([]byte, 512)
	for {
		if _, err := ws.Read(buffer); err != nil {
			if err != io.EOF {
				s.log.WithError(err).Debug("Subscriber read error")
			}
			return
		}
	}
}

// OpenConnection tracks ws until it is closed.
func (s *Server) OpenConnection(ws *websocket.Conn) {
	s.mu.Lock()
	s.conns[ws] = true
	s.mu.Unlock()
}

// CloseConnection closes ws and stops tracking it.
func (s *Server) CloseConnection(ws *websocket.Conn) {
	_ = ws.Close()
	s.mu.Lock()
	delete(s.conns, ws)
	s.mu.Unlock()
}

// CloseConnections closes every open subscription.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for ws := range s.conns {
		conns = append(conns, ws)
	}
	s.mu.Unlock()

	for _, ws := range conns {
		s.CloseConnection(ws)
	}
}

// Connections returns the number of open subscriptions.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
