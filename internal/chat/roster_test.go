package chat

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

func user(id, name string) protocol.ConnectedUser {
	return protocol.ConnectedUser{UserID: id, Name: name, Status: "online"}
}

func TestRosterReplacedWholesale(t *testing.T) {
	roster := NewRoster(&fakeSender{}, zerolog.Nop())

	roster.HandleEvent(&protocol.ConnectedUsers{
		Users: []protocol.ConnectedUser{user("1", "Me"), user("7", "Bo")},
	})
	assert.Equal(t, 2, roster.Count())

	// A snapshot without "7" means "7" is gone; nothing is merged.
	roster.HandleEvent(&protocol.UserDisconnected{
		UserID:         "7",
		ConnectedUsers: []protocol.ConnectedUser{user("1", "Me")},
	})
	assert.Equal(t, 1, roster.Count())
	_, ok := roster.Get("7")
	assert.False(t, ok)

	roster.HandleEvent(&protocol.UserConnected{
		UserID:         "9",
		ConnectedUsers: []protocol.ConnectedUser{user("1", "Me"), user("9", "Ann")},
	})
	assert.Equal(t, 2, roster.Count())

	roster.HandleEvent(&protocol.UsersUpdated{
		ConnectedUsers: []protocol.ConnectedUser{user("1", "Me"), user("9", "Ann B")},
	})
	got, ok := roster.Get("9")
	require.True(t, ok)
	assert.Equal(t, "Ann B", got.Name)
}

func TestRosterKeepsLocalUser(t *testing.T) {
	roster := NewRoster(&fakeSender{}, zerolog.Nop())

	roster.HandleEvent(&protocol.ConnectedUsers{
		Users: []protocol.ConnectedUser{user("1", "Me"), user("7", "Bo")},
	})

	// The roster stores everyone including the local user; hiding the local
	// user from peer pickers is the caller's concern.
	_, ok := roster.Get("1")
	assert.True(t, ok)

	peers := roster.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, "1", peers[0].UserID)
	assert.Equal(t, "7", peers[1].UserID)
}

func TestRosterRequest(t *testing.T) {
	s := &fakeSender{}
	roster := NewRoster(s, zerolog.Nop())

	require.NoError(t, roster.Request())

	frames := s.sent()
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.NewGetConnectedUsersFrame(), frames[0])
}

func TestRosterClear(t *testing.T) {
	roster := NewRoster(&fakeSender{}, zerolog.Nop())

	roster.HandleEvent(&protocol.ConnectedUsers{
		Users: []protocol.ConnectedUser{user("1", "Me")},
	})
	roster.Clear()
	assert.Equal(t, 0, roster.Count())
	assert.Empty(t, roster.Peers())
}
