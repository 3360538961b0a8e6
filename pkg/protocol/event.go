// Package protocol defines the chat wire protocol: the closed set of inbound
// events pushed by the server and the outbound frames a client may transmit.
// Every frame is a single UTF-8 JSON object with a mandatory "event" tag.
package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// EventType is the tag of an inbound event.
type EventType string

const (
	EventNewMessage       EventType = "new_message"
	EventMessageSent      EventType = "message_sent"
	EventMessageDelivered EventType = "message_delivered"
	EventMessageSeen      EventType = "message_seen"
	EventTyping           EventType = "typing"
	EventConnectedUsers   EventType = "connected_users"
	EventUserConnected    EventType = "user_connected"
	EventUserDisconnected EventType = "user_disconnected"
	EventUsersUpdated     EventType = "users_updated"
)

// ErrUnknownEvent reports an inbound frame whose tag is not part of the
// protocol. Callers are expected to log and drop such frames.
var ErrUnknownEvent = errors.New("unknown event tag")

// Event is one parsed inbound frame.
type Event interface {
	Type() EventType
}

// ConnectedUser is a roster entry as supplied by the server.
type ConnectedUser struct {
	UserID      string `json:"user_id"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	GoogleID    string `json:"google_id,omitempty"`
	ConnectedAt string `json:"connected_at"`
	Status      string `json:"status"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// NewMessage is a message pushed to the local user.
type NewMessage struct {
	From      string `json:"from"`
	MessageID int64  `json:"message_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (NewMessage) Type() EventType { return EventNewMessage }

// MessageSent confirms a locally sent message with its server-assigned
// identifier and timestamp. This is the authoritative record for sent
// messages.
type MessageSent struct {
	MessageID int64  `json:"message_id"`
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (MessageSent) Type() EventType { return EventMessageSent }

// MessageDelivered reports that a message reached its recipient.
type MessageDelivered struct {
	MessageID   int64  `json:"message_id"`
	Timestamp   string `json:"timestamp"`
	DeliveredAt string `json:"delivered_at"`
}

func (MessageDelivered) Type() EventType { return EventMessageDelivered }

// MessageSeen reports that the recipient viewed a message.
type MessageSeen struct {
	MessageID int64  `json:"message_id"`
	SeenAt    string `json:"seen_at"`
}

func (MessageSeen) Type() EventType { return EventMessageSeen }

// Typing reports a peer starting or stopping to type toward the local user.
type Typing struct {
	From     string `json:"from"`
	IsTyping bool   `json:"is_typing"`
}

func (Typing) Type() EventType { return EventTyping }

// ConnectedUsers is the full roster, sent in response to a get_connected_users
// request.
type ConnectedUsers struct {
	Users []ConnectedUser `json:"users"`
}

func (ConnectedUsers) Type() EventType { return EventConnectedUsers }

// UserConnected announces a peer joining. It carries a full roster snapshot.
type UserConnected struct {
	UserID         string          `json:"user_id"`
	UserInfo       *ConnectedUser  `json:"user_info,omitempty"`
	ConnectedUsers []ConnectedUser `json:"connected_users"`
}

func (UserConnected) Type() EventType { return EventUserConnected }

// UserDisconnected announces a peer leaving. It carries a full roster
// snapshot.
type UserDisconnected struct {
	UserID         string          `json:"user_id"`
	UserInfo       *ConnectedUser  `json:"user_info,omitempty"`
	ConnectedUsers []ConnectedUser `json:"connected_users"`
}

func (UserDisconnected) Type() EventType { return EventUserDisconnected }

// UsersUpdated announces a change to a connected peer's profile. It carries a
// full roster snapshot.
type UsersUpdated struct {
	ConnectedUsers []ConnectedUser `json:"connected_users"`
}

func (UsersUpdated) Type() EventType { return EventUsersUpdated }

// DecodeEvent parses one inbound frame into its typed event. A frame that is
// not valid JSON yields a wrapped unmarshal error; a frame whose tag is not
// recognized yields ErrUnknownEvent.
func DecodeEvent(data []byte) (Event, error) {
	var probe struct {
		Event EventType `json:"event"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "malformed frame")
	}

	var ev Event
	switch probe.Event {
	case EventNewMessage:
		ev = &NewMessage{}
	case EventMessageSent:
		ev = &MessageSent{}
	case EventMessageDelivered:
		ev = &MessageDelivered{}
	case EventMessageSeen:
		ev = &MessageSeen{}
	case EventTyping:
		ev = &Typing{}
	case EventConnectedUsers:
		ev = &ConnectedUsers{}
	case EventUserConnected:
		ev = &UserConnected{}
	case EventUserDisconnected:
		ev = &UserDisconnected{}
	case EventUsersUpdated:
		ev = &UsersUpdated{}
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", probe.Event)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, errors.Wrapf(err, "decode %s frame", probe.Event)
	}
	return ev, nil
}
