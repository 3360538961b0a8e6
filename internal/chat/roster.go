package chat

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/pkg/protocol"
)

// Roster holds the set of currently connected peers. Every roster-bearing
// event carries a full snapshot, so the roster is replaced wholesale on each
// one; there is no merging or diffing. The local user stays in the roster,
// filtering it out of peer-selection surfaces is a presentation concern.
type Roster struct {
	sender sender
	logger zerolog.Logger

	mu    sync.RWMutex
	peers map[string]protocol.ConnectedUser
}

// NewRoster creates an empty roster transmitting requests through s.
func NewRoster(s sender, logger zerolog.Logger) *Roster {
	return &Roster{
		sender: s,
		logger: logger.With().Str("component", "roster").Logger(),
		peers:  make(map[string]protocol.ConnectedUser),
	}
}

// HandleEvent consumes any roster-bearing inbound event and replaces the
// roster with the snapshot it carries.
func (r *Roster) HandleEvent(ev protocol.Event) {
	var users []protocol.ConnectedUser
	switch e := ev.(type) {
	case *protocol.ConnectedUsers:
		users = e.Users
	case *protocol.UserConnected:
		users = e.ConnectedUsers
	case *protocol.UserDisconnected:
		users = e.ConnectedUsers
	case *protocol.UsersUpdated:
		users = e.ConnectedUsers
	default:
		return
	}
	r.replace(users)
}

func (r *Roster) replace(users []protocol.ConnectedUser) {
	peers := make(map[string]protocol.ConnectedUser, len(users))
	for _, u := range users {
		peers[u.UserID] = u
	}

	r.mu.Lock()
	r.peers = peers
	r.mu.Unlock()

	r.logger.Debug().Int("count", len(peers)).Msg("roster replaced")
}

// Request asks the server for a fresh roster snapshot. Meaningful only while
// connected; otherwise the session drops the frame and records the error.
func (r *Roster) Request() error {
	return r.sender.Send(protocol.NewGetConnectedUsersFrame())
}

// Peers returns the roster entries sorted by user id.
func (r *Roster) Peers() []protocol.ConnectedUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]protocol.ConnectedUser, 0, len(r.peers))
	for _, u := range r.peers {
		peers = append(peers, u)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].UserID < peers[j].UserID })
	return peers
}

// Get returns the roster entry for a user id.
func (r *Roster) Get(userID string) (protocol.ConnectedUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.peers[userID]
	return u, ok
}

// Count returns the number of connected users.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Clear empties the roster. Called on disconnect.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = make(map[string]protocol.ConnectedUser)
}
