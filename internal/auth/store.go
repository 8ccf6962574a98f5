// Package auth holds the client-side session and drives the presence channel
// from it.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chatline/internal/api"
	"chatline/internal/broadcast"
	"chatline/internal/constants"
	"chatline/internal/logger"
	"chatline/internal/notify"
	"chatline/internal/presence"
)

// API is the part of the HTTP client the store calls.
type API interface {
	CheckAuth(ctx context.Context) (*api.User, error)
	Signup(ctx context.Context, req api.SignupRequest) (*api.User, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, req api.ProfileUpdate) (*api.User, error)
}

// Channel is the realtime presence connection owned by the store.
type Channel interface {
	Connect(userID string)
	Disconnect()
	Connected() bool
	State() presence.State
	Roster() []string
}

// Store is the session state container. Operations never return errors;
// failures are reported through the notifier.
type Store struct {
	api          API
	channel      Channel
	notifier     notify.Notifier
	log          *slog.Logger
	connectDelay time.Duration

	mu           sync.Mutex
	state        State
	connectTimer *time.Timer
	closed       bool

	updates *broadcast.Broadcaster[State]
}

type Option func(*Store)

// WithPresence sets the channel connected once a session exists.
func WithPresence(ch Channel) Option {
	return func(s *Store) { s.channel = ch }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithConnectDelay sets how long a successful login waits before connecting
// the presence channel, letting the session cookie settle.
func WithConnectDelay(d time.Duration) Option {
	return func(s *Store) { s.connectDelay = max(d, 0) }
}

func New(client API, opts ...Option) *Store {
	s := &Store{
		api:          client,
		notifier:     notify.Discard,
		log:          logger.Discard(),
		connectDelay: constants.LoginConnectDelay,
		state:        State{IsCheckingAuth: true},
		updates:      broadcast.New[State](8),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAuth restores the session from the server. A 401 means "not logged
// in" and is not reported to the user.
func (s *Store) CheckAuth(ctx context.Context) {
	s.update(func(st *State) { st.IsCheckingAuth = true })
	defer s.update(func(st *State) { st.IsCheckingAuth = false })

	user, err := s.api.CheckAuth(ctx)
	switch {
	case err == nil:
		s.setUser(user)
		s.log.InfoContext(ctx, "session restored", slog.String("user_id", user.ID))
		s.ConnectPresence()
	case errors.Is(err, api.ErrUnauthorized):
		s.setUser(nil)
		s.log.DebugContext(ctx, "no active session")
	default:
		s.log.ErrorContext(ctx, "check auth failed", logger.Error(err))
		notify.Error(s.notifier, constants.MsgCheckAuthFailed)
	}
}

func (s *Store) Signup(ctx context.Context, req api.SignupRequest) {
	s.update(func(st *State) { st.IsSigningUp = true })
	defer s.update(func(st *State) { st.IsSigningUp = false })

	user, err := s.api.Signup(ctx, req)
	if err != nil {
		s.log.WarnContext(ctx, "signup failed", logger.Error(err))
		notify.Error(s.notifier, api.Message(err, constants.MsgSignupFailed))
		return
	}

	s.setUser(user)
	s.log.InfoContext(ctx, "signed up", slog.String("user_id", user.ID))
	notify.Success(s.notifier, constants.MsgSignupSuccess)
	s.ConnectPresence()
}

// Login authenticates and schedules the presence connection after the
// connect delay.
func (s *Store) Login(ctx context.Context, req api.LoginRequest) {
	s.update(func(st *State) { st.IsLoggingIn = true })
	defer s.update(func(st *State) { st.IsLoggingIn = false })

	user, err := s.api.Login(ctx, req)
	if err != nil {
		s.log.WarnContext(ctx, "login failed", logger.Error(err))
		notify.Error(s.notifier, api.Message(err, constants.MsgLoginFailed))
		return
	}

	s.setUser(user)
	s.log.InfoContext(ctx, "logged in", slog.String("user_id", user.ID))
	notify.Success(s.notifier, constants.MsgLoginSuccess)
	s.scheduleConnect()
}

// Logout ends the session on the server. The local session and the presence
// channel are only torn down when the server call succeeds.
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.log.WarnContext(ctx, "logout failed", logger.Error(err))
		notify.Error(s.notifier, api.Message(err, constants.MsgLogoutFailed))
		return
	}

	s.setUser(nil)
	s.log.InfoContext(ctx, "logged out")
	notify.Success(s.notifier, constants.MsgLogoutSuccess)
	s.DisconnectPresence()
}

func (s *Store) UpdateProfile(ctx context.Context, req api.ProfileUpdate) {
	s.update(func(st *State) { st.IsUpdatingProfile = true })
	defer s.update(func(st *State) { st.IsUpdatingProfile = false })

	user, err := s.api.UpdateProfile(ctx, req)
	if err != nil {
		s.log.WarnContext(ctx, "profile update failed", logger.Error(err))
		notify.Error(s.notifier, api.Message(err, constants.MsgProfileFailed))
		return
	}

	s.setUser(user)
	notify.Success(s.notifier, constants.MsgProfileUpdated)
}

// ConnectPresence connects the presence channel as the current user. It is a
// no-op without a session or when the channel is already connected.
func (s *Store) ConnectPresence() {
	s.mu.Lock()
	user, closed := s.state.User, s.closed
	s.mu.Unlock()

	if s.channel == nil || closed || user == nil || s.channel.Connected() {
		return
	}
	s.channel.Connect(user.ID)
}

// DisconnectPresence cancels a scheduled connect and disconnects the channel.
func (s *Store) DisconnectPresence() {
	s.stopConnectTimer()
	if s.channel == nil {
		return
	}
	s.channel.Disconnect()
}

// PresenceChanged publishes a fresh snapshot. Wire it to the presence
// channel's roster and state callbacks.
func (s *Store) PresenceChanged() {
	s.publish()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	st := s.state.clone()
	s.mu.Unlock()

	if s.channel != nil {
		st.OnlineUsers = s.channel.Roster()
		st.Presence = s.channel.State()
	}
	if st.OnlineUsers == nil {
		st.OnlineUsers = []string{}
	}
	return st
}

// Subscribe returns a channel receiving a snapshot after every change. It is
// closed when ctx is done or the store is closed.
func (s *Store) Subscribe(ctx context.Context) <-chan State {
	return s.updates.Subscribe(ctx)
}

// Close cancels any scheduled connect, disconnects the channel and closes
// every subscription.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.DisconnectPresence()
	s.updates.Close()
}

func (s *Store) scheduleConnect() {
	if s.connectDelay <= 0 {
		s.ConnectPresence()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.connectTimer != nil {
		s.connectTimer.Stop()
	}
	s.connectTimer = time.AfterFunc(s.connectDelay, s.ConnectPresence)
}

func (s *Store) stopConnectTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
}

func (s *Store) setUser(user *api.User) {
	s.update(func(st *State) { st.User = user })
}

func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.publish()
}

func (s *Store) publish() {
	s.updates.Publish(s.Snapshot())
}
