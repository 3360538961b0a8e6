package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/internal/history"
	"github.com/hiroya/socket-dm/pkg/protocol"
	"github.com/hiroya/socket-dm/pkg/safety"
)

const historyTimeout = 10 * time.Second

// HistoryFetcher loads the stored message history between two users.
// Satisfied by *history.Client.
type HistoryFetcher interface {
	Fetch(ctx context.Context, localUserID, peerID string) ([]history.Record, error)
}

// Conversation owns the ordered message list for the single currently open
// conversation. It bridges send intents to outbound frames and reconciles
// acknowledgement events into per-message delivery state. Opening a different
// peer discards the list and loads that peer's history fresh.
type Conversation struct {
	sender      sender
	localUserID string
	pipeline    *safety.Pipeline
	history     HistoryFetcher
	typing      *TypingCoordinator
	logger      zerolog.Logger

	mu       sync.Mutex
	peerID   string
	messages []Message
	loading  bool
	fetchGen uint64
}

// NewConversation creates a tracker with no conversation open.
func NewConversation(s sender, localUserID string, pipeline *safety.Pipeline, h HistoryFetcher, typing *TypingCoordinator, logger zerolog.Logger) *Conversation {
	return &Conversation{
		sender:      s,
		localUserID: localUserID,
		pipeline:    pipeline,
		history:     h,
		typing:      typing,
		logger:      logger.With().Str("component", "conversation").Logger(),
	}
}

// Open selects peerID as the open conversation and loads its history in the
// background. Opening the already-open peer toggles the conversation closed
// instead. Switching away from a peer with an active typing signal transmits
// a typing-stop for that peer before the new history load starts.
func (c *Conversation) Open(peerID string) {
	c.mu.Lock()
	prev := c.peerID
	if prev == peerID {
		c.resetLocked()
		c.mu.Unlock()
		c.typing.StopTyping(peerID)
		return
	}
	c.peerID = peerID
	c.messages = nil
	c.loading = true
	c.fetchGen++
	gen := c.fetchGen
	c.mu.Unlock()

	if prev != "" {
		c.typing.StopTyping(prev)
	}

	go c.loadHistory(gen, peerID)
}

// Close closes the open conversation, cancelling any pending typing signal
// toward its peer. No-op when nothing is open.
func (c *Conversation) Close() {
	c.mu.Lock()
	peer := c.peerID
	c.resetLocked()
	c.mu.Unlock()

	if peer != "" {
		c.typing.StopTyping(peer)
	}
}

// resetLocked clears selection and message state. Bumping the fetch
// generation invalidates any in-flight history load.
func (c *Conversation) resetLocked() {
	c.peerID = ""
	c.messages = nil
	c.loading = false
	c.fetchGen++
}

// loadHistory fetches history for peerID and applies it only if the
// conversation is still the one the fetch was started for. A response that
// resolves after the user switched peers is discarded.
func (c *Conversation) loadHistory(gen uint64, peerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	records, err := c.history.Fetch(ctx, c.localUserID, peerID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.fetchGen || c.peerID != peerID {
		c.logger.Debug().Str("peer_id", peerID).Msg("discarding superseded history response")
		return
	}
	c.loading = false
	if err != nil {
		c.logger.Warn().Err(err).Str("peer_id", peerID).Msg("history load failed")
		return
	}

	messages := make([]Message, 0, len(records))
	for _, r := range records {
		messages = append(messages, Message{
			ID:          r.ID,
			From:        r.From,
			To:          r.To,
			Body:        r.Message,
			Timestamp:   r.Timestamp,
			DeliveredAt: r.DeliveredAt,
			SeenAt:      r.SeenAt,
		})
	}
	c.messages = messages
}

// Send validates and sanitizes text, then transmits it to peerID. Invalid
// messages are rejected without touching the wire. No optimistic local record
// is appended; the authoritative echo arrives as a message_sent event.
func (c *Conversation) Send(peerID, text string) error {
	v := c.pipeline.ValidateOutbound(text)
	if !v.OK {
		c.logger.Warn().Strs("errors", v.Errors).Msg("rejecting outbound message")
		return errors.Errorf("invalid message: %s", strings.Join(v.Errors, "; "))
	}
	if strings.TrimSpace(v.Sanitized) == "" {
		c.logger.Warn().Msg("rejecting outbound message, empty after sanitization")
		return errors.New("invalid message: empty after sanitization")
	}

	if err := c.sender.Send(protocol.NewMessageFrame(peerID, v.Sanitized)); err != nil {
		return err
	}
	c.typing.StopTyping(peerID)
	return nil
}

// MarkSeen asks the server to mark every message from peerID as seen. When to
// call this is caller policy; the engine never auto-invokes it, so unread
// semantics stay implementable on top.
func (c *Conversation) MarkSeen(peerID string) error {
	return c.sender.Send(protocol.NewMarkMessagesSeenFrame(peerID))
}

// HandleNewMessage appends an inbound message when it belongs to the open
// conversation. A sender equal to the local user covers multi-device echo.
func (c *Conversation) HandleNewMessage(ev protocol.Event) {
	m, ok := ev.(*protocol.NewMessage)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peerID == "" || (m.From != c.peerID && m.From != c.localUserID) {
		return
	}

	to := c.localUserID
	if m.From == c.localUserID {
		to = c.peerID
	}
	c.messages = append(c.messages, Message{
		ID:        m.MessageID,
		From:      m.From,
		To:        to,
		Body:      m.Message,
		Timestamp: m.Timestamp,
	})
}

// HandleMessageSent records the authoritative copy of a locally sent message,
// carrying the server-assigned identifier and timestamp. An existing record
// with the same identifier is replaced rather than duplicated.
func (c *Conversation) HandleMessageSent(ev protocol.Event) {
	m, ok := ev.(*protocol.MessageSent)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peerID == "" || m.To != c.peerID {
		return
	}

	msg := Message{
		ID:        m.MessageID,
		From:      c.localUserID,
		To:        m.To,
		Body:      m.Message,
		Timestamp: m.Timestamp,
	}
	for i := range c.messages {
		if c.messages[i].ID == m.MessageID {
			msg.DeliveredAt = c.messages[i].DeliveredAt
			msg.SeenAt = c.messages[i].SeenAt
			c.messages[i] = msg
			return
		}
	}
	c.messages = append(c.messages, msg)
}

// HandleMessageDelivered sets the delivered timestamp of the referenced
// message. The timestamp is set once and never reverted; a message outside
// the open conversation is a no-op.
func (c *Conversation) HandleMessageDelivered(ev protocol.Event) {
	m, ok := ev.(*protocol.MessageDelivered)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == m.MessageID {
			if c.messages[i].DeliveredAt == "" {
				c.messages[i].DeliveredAt = m.DeliveredAt
			}
			return
		}
	}
}

// HandleMessageSeen sets the seen timestamp of the referenced message, with
// the same set-once and not-found semantics as delivery.
func (c *Conversation) HandleMessageSeen(ev protocol.Event) {
	m, ok := ev.(*protocol.MessageSeen)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == m.MessageID {
			if c.messages[i].SeenAt == "" {
				c.messages[i].SeenAt = m.SeenAt
			}
			return
		}
	}
}

// PeerID returns the open conversation's peer, or "" when none is open.
func (c *Conversation) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// IsOpen reports whether a conversation is open.
func (c *Conversation) IsOpen() bool { return c.PeerID() != "" }

// Loading reports whether a history fetch is outstanding.
func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns a snapshot of the open conversation's message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}
