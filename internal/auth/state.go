package auth

import (
	"slices"

	"chatline/internal/api"
	"chatline/internal/presence"
)

// State is a point-in-time copy of everything the store tracks.
type State struct {
	User *api.User

	IsSigningUp       bool
	IsLoggingIn       bool
	IsUpdatingProfile bool
	IsCheckingAuth    bool

	OnlineUsers []string
	Presence    presence.State
}

// Authenticated reports whether a session is present.
func (s State) Authenticated() bool {
	return s.User != nil
}

// IsOnline reports whether userID is in the last roster pushed by the server.
func (s State) IsOnline(userID string) bool {
	return slices.Contains(s.OnlineUsers, userID)
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	s.OnlineUsers = slices.Clone(s.OnlineUsers)
	return s
}
