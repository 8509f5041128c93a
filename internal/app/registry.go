package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumina/internal/telemetry"
)

// Registry maps client-instance ids to sessions and closes the ones that
// have been idle too long.
type Registry struct {
	newClient   func() Backend
	idleTimeout time.Duration
	logger      *zap.Logger
	metrics     *telemetry.Metrics
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(newClient func() Backend, idleTimeout time.Duration, logger *zap.Logger, metrics *telemetry.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		newClient:   newClient,
		idleTimeout: idleTimeout,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Get returns the live session for id and marks it active.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		sess.Touch(r.now())
	}
	return sess, ok
}

// Create starts a new client instance with a fresh id.
func (r *Registry) Create() *Session {
	sess := NewSession(uuid.NewString(), r.newClient(), r.logger)
	sess.Touch(r.now())

	r.mu.Lock()
	r.sessions[sess.ID()] = sess
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetClientInstances(n)
	return sess
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the timeout and returns how
// many it closed.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	var expired []*Session
	for id, sess := range r.sessions {
		if sess.idleSince(now) > r.idleTimeout {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("closed idle client instances", zap.Int("closed", len(expired)), zap.Int("live", n))
	}
	r.metrics.SetClientInstances(n)
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	r.metrics.SetClientInstances(0)
}
