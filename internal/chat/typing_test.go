package chat

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

func TestTypingEdgeTriggered(t *testing.T) {
	s := &fakeSender{}
	typing := NewTypingCoordinator(s, zerolog.Nop())

	// Keystroke after keystroke with a non-empty draft: one frame total.
	typing.UpdateInput("7", "h")
	typing.UpdateInput("7", "he")
	typing.UpdateInput("7", "hel")

	frames := s.sent()
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.NewTypingFrame("7", true), frames[0])

	// Draft cleared: exactly one stop, and repeats stay silent.
	typing.UpdateInput("7", "")
	typing.UpdateInput("7", "  ")

	frames = s.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.NewTypingFrame("7", false), frames[1])
}

func TestTypingWhitespaceIsNotTyping(t *testing.T) {
	s := &fakeSender{}
	typing := NewTypingCoordinator(s, zerolog.Nop())

	typing.UpdateInput("7", "   ")
	assert.Empty(t, s.sent())
}

func TestStopTypingFiresOnceWhileActive(t *testing.T) {
	s := &fakeSender{}
	typing := NewTypingCoordinator(s, zerolog.Nop())

	typing.StopTyping("7")
	assert.Empty(t, s.sent(), "no stop when no signal is active")

	typing.UpdateInput("7", "draft")
	typing.StopTyping("7")
	typing.StopTyping("7")

	frames := s.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.NewTypingFrame("7", false), frames[1])
}

func TestTypingTracksPeersIndependently(t *testing.T) {
	s := &fakeSender{}
	typing := NewTypingCoordinator(s, zerolog.Nop())

	typing.UpdateInput("7", "a")
	typing.UpdateInput("9", "b")

	frames := s.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.NewTypingFrame("7", true), frames[0])
	assert.Equal(t, protocol.NewTypingFrame("9", true), frames[1])
}

func TestRemoteTypingMembership(t *testing.T) {
	typing := NewTypingCoordinator(&fakeSender{}, zerolog.Nop())

	typing.HandleTyping(&protocol.Typing{From: "7", IsTyping: true})
	typing.HandleTyping(&protocol.Typing{From: "9", IsTyping: true})
	assert.True(t, typing.IsPeerTyping("7"))
	assert.Equal(t, []string{"7", "9"}, typing.PeersTyping())

	typing.HandleTyping(&protocol.Typing{From: "7", IsTyping: false})
	assert.False(t, typing.IsPeerTyping("7"))
	assert.Equal(t, []string{"9"}, typing.PeersTyping())
}

func TestTypingReset(t *testing.T) {
	s := &fakeSender{}
	typing := NewTypingCoordinator(s, zerolog.Nop())

	typing.UpdateInput("7", "draft")
	typing.HandleTyping(&protocol.Typing{From: "9", IsTyping: true})

	typing.Reset()
	assert.Empty(t, typing.PeersTyping())

	// After reset the local flag is clean; the next draft re-triggers.
	typing.UpdateInput("7", "draft")
	assert.Len(t, s.sent(), 2)
}
