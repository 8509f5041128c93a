package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lumina/internal/backend"
	"lumina/internal/model"
)

// Backend is the slice of the backend client a session drives.
// *backend.Client implements it.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*backend.Session, error)
	SignUp(ctx context.Context, email, password, username string) (*backend.SignUpResult, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*backend.Session, error)
	RefreshIfDue(ctx context.Context) (*backend.Session, error)
	RestoreSession(ctx context.Context, token string) (*backend.Session, error)
	Session() *backend.Session
	OnAuthStateChange(fn backend.AuthListener) *backend.Subscription
	Close()

	GetProfile(ctx context.Context, userID string) (*model.User, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error)
}

// Session is one client instance: a backend client plus the state it
// renders. State changes are serialized by mu; backend calls happen outside
// of it.
type Session struct {
	id     string
	client Backend
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	lastSeen time.Time

	notifyMu sync.Mutex
	watchMu  sync.Mutex
	nextID   uint64
	watchers map[uint64]func(State)

	sub *backend.Subscription
}

func NewSession(id string, client Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:       id,
		client:   client,
		logger:   logger.With(zap.String("client_id", id)),
		lastSeen: time.Now(),
		watchers: make(map[uint64]func(State)),
	}
	s.sub = client.OnAuthStateChange(s.onAuthStateChange)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Client() Backend {
	return s.client
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch registers fn to receive a snapshot after every dispatch. The
// returned func removes it.
func (s *Session) Watch(fn func(State)) func() {
	s.watchMu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// Dispatch applies evt and notifies watchers in dispatch order. Watchers
// must not dispatch.
func (s *Session) Dispatch(evt Event) State {
	snapshot, _ := s.apply(func(State) (Event, bool) { return evt, true })
	return snapshot
}

// apply reduces the event pick returns, if any, under a single lock hold.
func (s *Session) apply(pick func(State) (Event, bool)) (State, bool) {
	s.mu.Lock()
	evt, ok := pick(s.state)
	if !ok {
		current := s.state
		s.mu.Unlock()
		return current, false
	}
	s.state = Reduce(s.state, evt)
	snapshot := s.state
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.watchMu.Lock()
	fns := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
	return snapshot, true
}

// SelectConversation makes id active and loads its transcript. An empty id
// clears the selection.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	s.Dispatch(ConversationSelected{ID: id})
	if id == "" {
		return nil
	}
	messages, err := s.client.ListMessages(ctx, id)
	if err != nil {
		s.logger.Warn("load messages failed", zap.String("conversation_id", id), zap.Error(err))
		return err
	}
	s.Dispatch(MessagesLoaded{ConversationID: id, Messages: messages})
	return nil
}

// Touch records activity for idle expiry.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Close detaches from auth notifications and drops the backend session.
func (s *Session) Close() {
	s.sub.Unsubscribe()
	s.client.Close()
}

// beginSend takes the single-flight guard. On false the returned state
// tells why: no user, or a send already running.
func (s *Session) beginSend() (State, bool) {
	return s.apply(func(st State) (Event, bool) {
		if st.User == nil || st.Sending {
			return nil, false
		}
		return SendStarted{ConversationID: st.ActiveID}, true
	})
}

func (s *Session) onAuthStateChange(ctx context.Context, evt backend.AuthEvent) {
	if evt.Session == nil {
		s.Dispatch(SignedOut{})
		return
	}

	// A refresh for the signed-in user changes only the token; the profile and
	// list already on screen stay.
	current := s.State()
	if evt.Type == backend.EventTokenRefreshed && current.User != nil && current.User.ID == evt.Session.UserID {
		return
	}

	profile, err := s.client.GetProfile(ctx, evt.Session.UserID)
	if err != nil {
		s.logger.Warn("load profile failed", zap.String("user_id", evt.Session.UserID), zap.Error(err))
		return
	}
	s.Dispatch(AuthChanged{User: profile})

	conversations, err := s.client.ListConversations(ctx, profile.ID)
	if err != nil {
		s.logger.Warn("load conversations failed", zap.String("user_id", profile.ID), zap.Error(err))
		return
	}
	s.Dispatch(ConversationsLoaded{Conversations: conversations})
}
