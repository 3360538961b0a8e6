package session

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

func TestDispatcherRoutesByTag(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var got protocol.Event
	d.Register(protocol.EventTyping, func(ev protocol.Event) { got = ev })

	d.Dispatch([]byte(`{"event":"typing","from":"7","is_typing":true}`))

	require.NotNil(t, got)
	typing, ok := got.(*protocol.Typing)
	require.True(t, ok)
	assert.Equal(t, "7", typing.From)
	assert.True(t, typing.IsTyping)
}

func TestDispatcherReplaceAndRemoveHandler(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	first, second := 0, 0
	d.Register(protocol.EventTyping, func(protocol.Event) { first++ })
	d.Register(protocol.EventTyping, func(protocol.Event) { second++ })

	d.Dispatch([]byte(`{"event":"typing","from":"7","is_typing":true}`))
	assert.Equal(t, 0, first, "replaced handler must not run")
	assert.Equal(t, 1, second)

	d.Register(protocol.EventTyping, nil)
	d.Dispatch([]byte(`{"event":"typing","from":"7","is_typing":true}`))
	assert.Equal(t, 1, second, "removed handler must not run")
}

func TestDispatcherDropsBadFrames(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	calls := 0
	d.Register(protocol.EventNewMessage, func(protocol.Event) { calls++ })

	// None of these may panic or reach a handler.
	d.Dispatch([]byte(`not json`))
	d.Dispatch([]byte(`{"event":"no_such_event"}`))
	d.Dispatch([]byte(`{"event":"typing","from":"7","is_typing":true}`))

	assert.Equal(t, 0, calls)
}
