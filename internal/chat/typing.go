package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

// TypingCoordinator tracks which peers are typing toward the local user and
// emits the local user's typing-state transitions. Local signals are
// edge-triggered: a frame goes out only when the boolean derived from the
// input changes, never on every keystroke.
type TypingCoordinator struct {
	sender sender
	logger zerolog.Logger

	mu          sync.Mutex
	peersTyping map[string]struct{}
	lastSent    map[string]bool
}

// NewTypingCoordinator creates a coordinator transmitting through s.
func NewTypingCoordinator(s sender, logger zerolog.Logger) *TypingCoordinator {
	return &TypingCoordinator{
		sender:      s,
		logger:      logger.With().Str("component", "typing").Logger(),
		peersTyping: make(map[string]struct{}),
		lastSent:    make(map[string]bool),
	}
}

// UpdateInput derives the local typing state from the latest input value and
// transmits a typing frame toward peerID only on a state change. The
// last-transmitted value is updated unconditionally after the comparison.
func (t *TypingCoordinator) UpdateInput(peerID, input string) {
	shouldType := strings.TrimSpace(input) != ""

	t.mu.Lock()
	changed := shouldType != t.lastSent[peerID]
	t.lastSent[peerID] = shouldType
	t.mu.Unlock()

	if !changed {
		return
	}
	if err := t.sender.Send(protocol.NewTypingFrame(peerID, shouldType)); err != nil {
		t.logger.Warn().Err(err).Str("peer_id", peerID).Msg("typing signal dropped")
	}
}

// StopTyping force-transmits a typing-stop toward peerID if a typing signal
// is currently active, then clears the local flag. Used on message send, on
// closing a conversation, and on switching peers.
func (t *TypingCoordinator) StopTyping(peerID string) {
	t.mu.Lock()
	active := t.lastSent[peerID]
	t.lastSent[peerID] = false
	t.mu.Unlock()

	if !active {
		return
	}
	if err := t.sender.Send(protocol.NewTypingFrame(peerID, false)); err != nil {
		t.logger.Warn().Err(err).Str("peer_id", peerID).Msg("typing stop dropped")
	}
}

// HandleTyping consumes an inbound typing event and toggles the sender's
// membership in the typing set.
func (t *TypingCoordinator) HandleTyping(ev protocol.Event) {
	typing, ok := ev.(*protocol.Typing)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if typing.IsTyping {
		t.peersTyping[typing.From] = struct{}{}
	} else {
		delete(t.peersTyping, typing.From)
	}
}

// IsPeerTyping reports whether a peer is currently signaling typing.
func (t *TypingCoordinator) IsPeerTyping(peerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.peersTyping[peerID]
	return ok
}

// PeersTyping returns the peers currently typing, sorted for stable display.
func (t *TypingCoordinator) PeersTyping() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	peers := make([]string, 0, len(t.peersTyping))
	for id := range t.peersTyping {
		peers = append(peers, id)
	}
	sort.Strings(peers)
	return peers
}

// Reset drops all typing state, local and remote. Called on disconnect so a
// reconnect starts from a clean slate.
func (t *TypingCoordinator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peersTyping = make(map[string]struct{})
	t.lastSent = make(map[string]bool)
}
