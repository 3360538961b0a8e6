package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Frame is one outbound frame. Implementations carry their own event tag so a
// frame cannot be transmitted under the wrong one.
type Frame interface {
	Encode() ([]byte, error)
}

func encodeFrame(f any) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	return data, nil
}

// MessageFrame sends a chat message to a peer.
type MessageFrame struct {
	Event   string `json:"event"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewMessageFrame builds a message frame addressed to a peer.
func NewMessageFrame(to, message string) MessageFrame {
	return MessageFrame{Event: "message", To: to, Message: message}
}

func (f MessageFrame) Encode() ([]byte, error) { return encodeFrame(f) }

// TypingFrame signals a typing-state transition toward a peer.
type TypingFrame struct {
	Event    string `json:"event"`
	To       string `json:"to"`
	IsTyping bool   `json:"is_typing"`
}

// NewTypingFrame builds a typing frame addressed to a peer.
func NewTypingFrame(to string, isTyping bool) TypingFrame {
	return TypingFrame{Event: "typing", To: to, IsTyping: isTyping}
}

func (f TypingFrame) Encode() ([]byte, error) { return encodeFrame(f) }

// GetConnectedUsersFrame requests a fresh roster snapshot.
type GetConnectedUsersFrame struct {
	Event string `json:"event"`
}

// NewGetConnectedUsersFrame builds a roster request frame.
func NewGetConnectedUsersFrame() GetConnectedUsersFrame {
	return GetConnectedUsersFrame{Event: "get_connected_users"}
}

func (f GetConnectedUsersFrame) Encode() ([]byte, error) { return encodeFrame(f) }

// MarkMessagesSeenFrame asks the server to mark every message from a peer as
// seen by the local user.
type MarkMessagesSeenFrame struct {
	Event      string `json:"event"`
	FromUserID string `json:"from_user_id"`
}

// NewMarkMessagesSeenFrame builds a mark-seen frame for a peer.
func NewMarkMessagesSeenFrame(fromUserID string) MarkMessagesSeenFrame {
	return MarkMessagesSeenFrame{Event: "mark_messages_seen", FromUserID: fromUserID}
}

func (f MarkMessagesSeenFrame) Encode() ([]byte, error) { return encodeFrame(f) }
