// Package session owns the single live connection to the chat server: its
// lifecycle state machine, outbound frame transmission, and the dispatcher
// that routes inbound frames to their owners.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

// ErrNotConnected reports a send attempted while the connection is not in the
// Connected state. The frame is dropped, never queued.
var ErrNotConnected = errors.New("not connected to server")

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns at most one live connection for one authenticated local user.
// There is no automatic reconnect; a dropped connection stays down until the
// caller connects again.
type Session struct {
	id          string
	localUserID string
	serverURL   string
	dispatcher  *Dispatcher
	logger      zerolog.Logger

	mu      sync.RWMutex
	state   State
	lastErr error
	conn    *websocket.Conn
	done    chan struct{}

	writeMu sync.Mutex
	wg      sync.WaitGroup

	teardownOnce sync.Once
}

// New creates a Session for localUserID against a ws:// or wss:// server
// base URL. An empty localUserID is rejected up front, before any transport
// action.
func New(serverURL, localUserID string, logger zerolog.Logger) (*Session, error) {
	if strings.TrimSpace(localUserID) == "" {
		return nil, errors.New("local user id must not be empty")
	}

	id := uuid.NewString()
	logger = logger.With().
		Str("component", "session").
		Str("session_id", id).
		Str("user_id", localUserID).
		Logger()

	return &Session{
		id:          id,
		localUserID: localUserID,
		serverURL:   strings.TrimRight(serverURL, "/"),
		dispatcher:  NewDispatcher(logger),
		logger:      logger,
	}, nil
}

// ID returns the session's identifier, used only for log correlation.
func (s *Session) ID() string { return s.id }

// LocalUserID returns the authenticated local user's identifier.
func (s *Session) LocalUserID() string { return s.localUserID }

// Dispatcher returns the inbound event dispatcher fed by this session's read
// loop.
func (s *Session) Dispatcher() *Dispatcher { return s.dispatcher }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the last recorded transport or send error. A successful
// connect clears it.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Connect opens the transport addressed by the local user identifier and
// starts the read loop. Calling while Connecting or Connected is a no-op; no
// second transport is ever opened.
func (s *Session) Connect() error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting, StateConnected:
		s.mu.Unlock()
		return nil
	case StateClosed:
		s.mu.Unlock()
		return errors.New("session is torn down")
	}
	s.state = StateConnecting
	s.lastErr = nil
	s.mu.Unlock()

	addr := fmt.Sprintf("%s/ws/chat/%s", s.serverURL, s.localUserID)
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to server")
		s.mu.Lock()
		s.state = StateDisconnected
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("addr", addr).Msg("connect failed")
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnect or Teardown won the race while the dial was in
		// flight; the session stays down.
		s.mu.Unlock()
		_ = conn.Close()
		return errors.New("session closed during connect")
	}
	s.conn = conn
	s.done = done
	s.state = StateConnected
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("connected")

	s.wg.Add(1)
	go s.readLoop(conn, done)
	return nil
}

// Disconnect closes the transport with a normal-closure signal. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.conn = nil
	s.done = nil
	if s.state == StateConnecting || s.state == StateConnected {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		s.writeMu.Unlock()
		_ = conn.Close()
		s.logger.Info().Msg("disconnected")
	}
	s.wg.Wait()
}

// Teardown disconnects and permanently closes the session. Invoked exactly
// once by the owning client on logout or shutdown.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		s.Disconnect()
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
	})
}

// Send serializes and transmits one frame. If the session is not Connected
// the frame is dropped, ErrNotConnected is recorded and returned, and nothing
// is queued or retried.
func (s *Session) Send(f protocol.Frame) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected && conn != nil
	if !connected {
		s.lastErr = ErrNotConnected
	}
	s.mu.Unlock()

	if !connected {
		s.logger.Warn().Msg("dropping frame, not connected")
		return ErrNotConnected
	}

	data, err := f.Encode()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		err = errors.Wrap(err, "failed to send frame")
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	return nil
}

// readLoop reads frames until the connection drops and feeds each one to the
// dispatcher. One frame is handled at a time, in delivery order.
func (s *Session) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer s.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.finishRead(conn, done, err)
			return
		}
		s.dispatcher.Dispatch(data)
	}
}

// finishRead resolves the session state after the read loop stops. A locally
// requested close or a normal closure from the server leaves no error; any
// other closure records one.
func (s *Session) finishRead(conn *websocket.Conn, done chan struct{}, err error) {
	local := false
	select {
	case <-done:
		local = true
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		s.conn = nil
		s.done = nil
		if s.state == StateConnecting || s.state == StateConnected {
			s.state = StateDisconnected
		}
	}
	if local || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return
	}
	s.lastErr = errors.Wrap(err, "connection closed")
	s.logger.Warn().Err(err).Msg("connection closed abnormally")
}
