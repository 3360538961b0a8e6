package chat

import (
	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/internal/history"
	"github.com/hiroya/socket-dm/internal/session"
	"github.com/hiroya/socket-dm/pkg/protocol"
	"github.com/hiroya/socket-dm/pkg/safety"
)

// Config configures a chat Client.
type Config struct {
	// ServerURL is the ws:// or wss:// base of the chat server.
	ServerURL string
	// HistoryURL is the http:// base of the history service. Ignored when
	// History is set.
	HistoryURL string
	// LocalUserID identifies the authenticated local user.
	LocalUserID string
	// LocalHost is the application's own host; links to it classify as
	// internal.
	LocalHost string
	// History overrides the history service client, mainly for tests.
	History HistoryFetcher
	// OnEvent, when set, observes every dispatched inbound event after the
	// engine has applied it. UI layers hang their refresh policy off this.
	OnEvent func(ev protocol.Event)

	Logger zerolog.Logger
}

// Client composes one Session with the trackers that own its inbound events:
// the conversation's message lifecycle, the typing coordination, and the
// roster. It is the single place where dispatcher handlers are registered.
type Client struct {
	session      *session.Session
	pipeline     *safety.Pipeline
	roster       *Roster
	typing       *TypingCoordinator
	conversation *Conversation
}

// NewClient wires up a chat client for one authenticated user.
func NewClient(cfg Config) (*Client, error) {
	sess, err := session.New(cfg.ServerURL, cfg.LocalUserID, cfg.Logger)
	if err != nil {
		return nil, err
	}

	fetcher := cfg.History
	if fetcher == nil {
		fetcher = history.NewClient(cfg.HistoryURL, cfg.Logger)
	}

	pipeline := safety.New(cfg.LocalHost)
	typing := NewTypingCoordinator(sess, cfg.Logger)
	roster := NewRoster(sess, cfg.Logger)
	conversation := NewConversation(sess, cfg.LocalUserID, pipeline, fetcher, typing, cfg.Logger)

	c := &Client{
		session:      sess,
		pipeline:     pipeline,
		roster:       roster,
		typing:       typing,
		conversation: conversation,
	}

	d := sess.Dispatcher()
	register := func(tag protocol.EventType, h session.Handler) {
		if cfg.OnEvent == nil {
			d.Register(tag, h)
			return
		}
		d.Register(tag, func(ev protocol.Event) {
			h(ev)
			cfg.OnEvent(ev)
		})
	}

	register(protocol.EventNewMessage, conversation.HandleNewMessage)
	register(protocol.EventMessageSent, conversation.HandleMessageSent)
	register(protocol.EventMessageDelivered, conversation.HandleMessageDelivered)
	register(protocol.EventMessageSeen, conversation.HandleMessageSeen)
	register(protocol.EventTyping, typing.HandleTyping)
	register(protocol.EventConnectedUsers, roster.HandleEvent)
	register(protocol.EventUserConnected, roster.HandleEvent)
	register(protocol.EventUserDisconnected, roster.HandleEvent)
	register(protocol.EventUsersUpdated, roster.HandleEvent)

	return c, nil
}

// Connect opens the session's transport. No-op while connecting or
// connected. A reconnect after a dropped connection starts from a clean
// slate: no roster or typing entries from the previous connection survive.
func (c *Client) Connect() error {
	if st := c.session.State(); st != session.StateConnecting && st != session.StateConnected {
		c.roster.Clear()
		c.typing.Reset()
	}
	return c.session.Connect()
}

// Disconnect closes the transport and drops all connection-derived state:
// the roster empties and typing state resets. A later reconnect starts from a
// clean slate.
func (c *Client) Disconnect() {
	c.session.Disconnect()
	c.roster.Clear()
	c.typing.Reset()
}

// Teardown disconnects and permanently closes the client.
func (c *Client) Teardown() {
	c.session.Teardown()
	c.roster.Clear()
	c.typing.Reset()
}

// Session returns the underlying session for state and error inspection.
func (c *Client) Session() *session.Session { return c.session }

// Pipeline returns the content safety pipeline, for rendering.
func (c *Client) Pipeline() *safety.Pipeline { return c.pipeline }

// Roster returns the presence manager.
func (c *Client) Roster() *Roster { return c.roster }

// Typing returns the typing coordinator.
func (c *Client) Typing() *TypingCoordinator { return c.typing }

// Conversation returns the message lifecycle tracker.
func (c *Client) Conversation() *Conversation { return c.conversation }
