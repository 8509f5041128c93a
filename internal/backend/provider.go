package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"lumina/internal/pkg/jwtutil"
	"lumina/internal/repository"
	"lumina/internal/telemetry"
)

const confirmTokenTTL = 24 * time.Hour

// Revocations records signed-out token ids.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ConfirmationSender delivers the sign-up confirmation link.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email, link string) error
}

type Options struct {
	Secret              string
	TokenTTL            time.Duration
	RequireConfirmation bool
	ConfirmBaseURL      string
	Revocations         Revocations
	Publisher           EventPublisher
	Confirmations       ConfirmationSender
	Logger              *zap.Logger
	Metrics             *telemetry.Metrics
}

// Provider is the process-wide side of the backend: it owns the store, signs
// tokens and hands out one Client per client instance.
type Provider struct {
	db            *gorm.DB
	users         *repository.UserRepository
	identities    *repository.IdentityRepository
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository

	secret              string
	tokenTTL            time.Duration
	requireConfirmation bool
	confirmBaseURL      string
	revocations         Revocations
	publisher           EventPublisher
	confirmations       ConfirmationSender
	logger              *zap.Logger
	metrics             *telemetry.Metrics
	now                 func() time.Time

	mu     sync.Mutex
	byUser map[string]map[*Client]struct{}
}

func NewProvider(db *gorm.DB, opts Options) *Provider {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Confirmations == nil {
		opts.Confirmations = LogConfirmationSender{Logger: opts.Logger}
	}
	return &Provider{
		db:                  db,
		users:               repository.NewUserRepository(db),
		identities:          repository.NewIdentityRepository(db),
		conversations:       repository.NewConversationRepository(db),
		messages:            repository.NewMessageRepository(db),
		secret:              opts.Secret,
		tokenTTL:            opts.TokenTTL,
		requireConfirmation: opts.RequireConfirmation,
		confirmBaseURL:      strings.TrimRight(opts.ConfirmBaseURL, "/"),
		revocations:         opts.Revocations,
		publisher:           opts.Publisher,
		confirmations:       opts.Confirmations,
		logger:              opts.Logger,
		metrics:             opts.Metrics,
		now:                 time.Now,
		byUser:              make(map[string]map[*Client]struct{}),
	}
}

// NewClient returns an unauthenticated client.
func (p *Provider) NewClient() *Client {
	return &Client{p: p}
}

// ConfirmEmail marks the identity behind a confirmation token as confirmed.
func (p *Provider) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := jwtutil.ParseToken(p.secret, strings.TrimSpace(token), jwtutil.PurposeConfirm)
	if err != nil {
		return &AuthError{Reason: ReasonInvalidToken, Message: "confirmation link is invalid or has expired", Err: err}
	}
	identity, err := p.identities.GetByID(ctx, claims.UserID)
	if err != nil {
		return p.storeError("confirm_email", err)
	}
	if identity == nil {
		return authError(ReasonInvalidToken, "confirmation link is invalid or has expired")
	}
	if err := p.identities.MarkConfirmed(ctx, identity.ID, p.now().UTC()); err != nil {
		return p.storeError("confirm_email", err)
	}
	p.logger.Info("email confirmed", zap.String("user_id", identity.ID))
	return nil
}

// Dispatch delivers a user-wide event to the clients in this process.
func (p *Provider) Dispatch(ctx context.Context, evt UserEvent) {
	if evt.Type != EventSignedOut {
		return
	}
	p.mu.Lock()
	clients := make([]*Client, 0, len(p.byUser[evt.UserID]))
	for c := range p.byUser[evt.UserID] {
		clients = append(clients, c)
	}
	p.mu.Unlock()

	for _, c := range clients {
		c.endSession(ctx)
	}
}

func (p *Provider) issueSession(userID, email string) (*Session, error) {
	token, claims, err := jwtutil.GenerateToken(p.secret, p.tokenTTL, userID, jwtutil.PurposeAccess, p.now())
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		TokenID:     claims.TokenID(),
		UserID:      userID,
		Email:       email,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (p *Provider) confirmationLink(userID string) (string, error) {
	token, _, err := jwtutil.GenerateToken(p.secret, confirmTokenTTL, userID, jwtutil.PurposeConfirm, p.now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/auth/confirm?token=%s", p.confirmBaseURL, url.QueryEscape(token)), nil
}

func (p *Provider) revoke(ctx context.Context, s *Session) {
	if p.revocations == nil || s == nil {
		return
	}
	ttl := s.ExpiresAt.Sub(p.now())
	if err := p.revocations.Revoke(ctx, s.TokenID, ttl); err != nil {
		p.logger.Warn("revoke session failed", zap.String("user_id", s.UserID), zap.Error(err))
	}
}

func (p *Provider) isRevoked(ctx context.Context, tokenID string) bool {
	if p.revocations == nil {
		return false
	}
	revoked, err := p.revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		p.logger.Warn("check revocation failed", zap.Error(err))
		return false
	}
	return revoked
}

func (p *Provider) register(c *Client, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.byUser[userID]
	if !ok {
		set = make(map[*Client]struct{})
		p.byUser[userID] = set
	}
	set[c] = struct{}{}
}

func (p *Provider) unregister(c *Client, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.byUser[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(p.byUser, userID)
	}
}

func (p *Provider) publishSignOut(ctx context.Context, userID string) {
	evt := UserEvent{Type: EventSignedOut, UserID: userID, OccurredAt: p.now().UTC()}
	if p.publisher == nil {
		p.Dispatch(ctx, evt)
		return
	}
	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Warn("publish sign-out failed, dispatching locally", zap.String("user_id", userID), zap.Error(err))
		p.Dispatch(ctx, evt)
	}
}

func (p *Provider) storeError(op string, err error) error {
	p.metrics.IncStoreError(op)
	return &StoreError{Op: op, Err: err}
}

// LogConfirmationSender writes the confirmation link to the log. It stands
// in for a mailer.
type LogConfirmationSender struct {
	Logger *zap.Logger
}

func (s LogConfirmationSender) SendConfirmation(_ context.Context, email, link string) error {
	s.Logger.Info("confirmation link issued", zap.String("email", email), zap.String("link", link))
	return nil
}
