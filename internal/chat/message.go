// Package chat holds the client-side chat domain: the open conversation's
// message list and its delivery lifecycle, the typing-indicator coordination,
// and the roster of connected peers.
package chat

import "github.com/hiroya/socket-dm/pkg/protocol"

// Status is the derived display status of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Message is one exchanged message in the open conversation. Timestamps are
// wire-form strings as supplied by the server; DeliveredAt and SeenAt are
// empty until the matching acknowledgement arrives and are never cleared
// afterwards.
type Message struct {
	ID          int64
	From        string
	To          string
	Body        string
	Timestamp   string
	DeliveredAt string
	SeenAt      string
}

// Status derives the display status. Seen wins over delivered: a seen message
// counts as delivered even when the delivered acknowledgement never arrived.
func (m Message) Status() Status {
	switch {
	case m.SeenAt != "":
		return StatusRead
	case m.DeliveredAt != "":
		return StatusDelivered
	default:
		return StatusPending
	}
}

// Delivered reports whether the message reached the recipient. Seen implies
// delivered.
func (m Message) Delivered() bool {
	return m.DeliveredAt != "" || m.SeenAt != ""
}

// sender transmits outbound frames. Satisfied by *session.Session.
type sender interface {
	Send(f protocol.Frame) error
}
