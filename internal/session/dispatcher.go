package session

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

// Handler consumes one parsed inbound event. The event's concrete type
// matches the tag it was registered for.
type Handler func(ev protocol.Event)

// Dispatcher parses inbound frames and routes them by event tag. At most one
// handler is registered per tag; registering again replaces it, registering
// nil removes it. Dispatch is driven by the session's single read loop, so
// frames are handled strictly in arrival order, one at a time.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[protocol.EventType]Handler
	logger   zerolog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.EventType]Handler),
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Register installs h as the handler for tag, replacing any previous one.
// A nil h unregisters the tag.
func (d *Dispatcher) Register(tag protocol.EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, tag)
		return
	}
	d.handlers[tag] = h
}

// Dispatch parses one raw frame and invokes the handler registered for its
// tag. Malformed frames, unknown tags, and tags without a handler are logged
// and dropped; nothing propagates to the caller.
func (d *Dispatcher) Dispatch(data []byte) {
	ev, err := protocol.DecodeEvent(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			d.logger.Debug().Err(err).Msg("dropping unrecognized frame")
		} else {
			d.logger.Warn().Err(err).Msg("dropping malformed frame")
		}
		return
	}

	d.mu.Lock()
	h := d.handlers[ev.Type()]
	d.mu.Unlock()

	if h == nil {
		d.logger.Debug().Str("event", string(ev.Type())).Msg("no handler registered, dropping frame")
		return
	}
	h(ev)
}
