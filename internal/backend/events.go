package backend

import (
	"context"
	"sync"
	"time"
)

type AuthEventType string

const (
	EventInitialSession AuthEventType = "INITIAL_SESSION"
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to OnAuthStateChange listeners. Session is nil for
// sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

type AuthListener func(ctx context.Context, evt AuthEvent)

// Subscription is the handle returned by OnAuthStateChange.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe detaches the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// UserEvent ends every client session of a user, across processes when a
// publisher is configured.
type UserEvent struct {
	Type       AuthEventType `json:"type"`
	UserID     string        `json:"user_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, evt UserEvent) error
}

type listenerSet struct {
	mu     sync.Mutex
	nextID uint64
	order  []uint64
	fns    map[uint64]AuthListener
}

func (l *listenerSet) add(fn AuthListener) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[uint64]AuthListener)
	}
	l.nextID++
	id := l.nextID
	l.fns[id] = fn
	l.order = append(l.order, id)
	return &Subscription{cancel: func() { l.remove(id) }}
}

func (l *listenerSet) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fns, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *listenerSet) snapshot() []AuthListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuthListener, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.fns[id])
	}
	return out
}

func (l *listenerSet) emit(ctx context.Context, evt AuthEvent) {
	for _, fn := range l.snapshot() {
		fn(ctx, evt)
	}
}
