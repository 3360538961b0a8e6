// Package chattest provides a scripted in-process chat server for tests. It
// accepts client connections, records every frame a client transmits, and
// pushes arbitrary inbound events on demand.
package chattest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server is a scripted chat server backed by httptest.
type Server struct {
	httpSrv  *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted int

	frames    chan map[string]any
	connected chan struct{}
	closed    chan error
}

// New starts a scripted server. Callers must Close it.
func New() *Server {
	s := &Server{
		frames:    make(chan map[string]any, 64),
		connected: make(chan struct{}, 8),
		closed:    make(chan error, 8),
	}
	s.httpSrv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()

	select {
	case s.connected <- struct{}{}:
	default:
	}

	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			select {
			case s.closed <- err:
			default:
			}
			return
		}
		s.frames <- frame
	}
}

// WaitClose blocks until a client connection ends and returns the error its
// read loop observed, or false on timeout.
func (s *Server) WaitClose(timeout time.Duration) (error, bool) {
	select {
	case err := <-s.closed:
		return err, true
	case <-time.After(timeout):
		return nil, false
	}
}

// URL returns the ws:// base URL clients should dial.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http")
}

// WaitConnect blocks until a client connects or the timeout elapses.
func (s *Server) WaitConnect(timeout time.Duration) bool {
	select {
	case <-s.connected:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Accepted returns how many connections the server has accepted in total.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Push writes one JSON event to the most recently accepted connection.
func (s *Server) Push(v any) error {
	s.mu.Lock()
	conn := s.latestLocked()
	s.mu.Unlock()
	return conn.WriteJSON(v)
}

// PushRaw writes one raw text frame to the most recently accepted connection.
func (s *Server) PushRaw(data []byte) error {
	s.mu.Lock()
	conn := s.latestLocked()
	s.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) latestLocked() *websocket.Conn {
	if len(s.conns) == 0 {
		panic("chattest: no client connected")
	}
	return s.conns[len(s.conns)-1]
}

// NextFrame returns the next frame a client transmitted, or false on timeout.
func (s *Server) NextFrame(timeout time.Duration) (map[string]any, bool) {
	select {
	case f := <-s.frames:
		return f, true
	case <-time.After(timeout):
		return nil, false
	}
}

// DropClient severs the latest connection without a close handshake, so the
// client observes an abnormal closure.
func (s *Server) DropClient() {
	s.mu.Lock()
	conn := s.latestLocked()
	s.mu.Unlock()
	_ = conn.Close()
}

// Close shuts the server down and severs all connections.
func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	s.httpSrv.Close()
}
