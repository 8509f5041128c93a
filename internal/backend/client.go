package backend

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lumina/internal/model"
	"lumina/internal/pkg/jwtutil"
	"lumina/internal/repository"
)

const minPasswordLength = 6

// Session is an authenticated session held by one Client.
type Session struct {
	AccessToken string    `json:"-"`
	TokenID     string    `json:"-"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SignUpResult struct {
	User                 *model.User
	Session              *Session
	ConfirmationRequired bool
}

// Client is the per-instance handle: it holds at most one session and
// notifies its listeners whenever that session changes.
type Client struct {
	p *Provider

	mu        sync.Mutex
	session   *Session
	listeners listenerSet
}

func (c *Client) OnAuthStateChange(fn AuthListener) *Subscription {
	return c.listeners.add(fn)
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, authError(ReasonInvalidInput, "email and password are required")
	}

	identity, err := c.p.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, c.p.storeError("sign_in", err)
	}
	if identity == nil {
		return nil, authError(ReasonInvalidCredentials, "Invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, authError(ReasonInvalidCredentials, "Invalid login credentials")
	}
	if c.p.requireConfirmation && !identity.Confirmed() {
		return nil, authError(ReasonUnconfirmed, "Email not confirmed")
	}

	session, err := c.p.issueSession(identity.ID, identity.Email)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, session, EventSignedIn)
	return session, nil
}

// SignUp creates the auth identity and the profile row together. The
// username falls back to the local part of the email.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*SignUpResult, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, authError(ReasonInvalidInput, "a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, authError(ReasonInvalidInput, "Password should be at least 6 characters")
	}
	if username == "" {
		username = email[:strings.Index(email, "@")]
	}

	existing, err := c.p.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, c.p.storeError("sign_up", err)
	}
	if existing != nil {
		return nil, &ConflictError{Message: "User already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := c.p.now().UTC()
	user := &model.User{Username: username}
	identity := &model.Identity{Email: email, PasswordHash: string(hash)}
	if !c.p.requireConfirmation {
		identity.ConfirmedAt = &now
	}
	err = c.p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewUserRepository(tx).Create(ctx, user); err != nil {
			return err
		}
		identity.ID = user.ID
		return repository.NewIdentityRepository(tx).Create(ctx, identity)
	})
	if err != nil {
		if again, lookupErr := c.p.identities.GetByEmail(ctx, email); lookupErr == nil && again != nil {
			return nil, &ConflictError{Message: "User already registered"}
		}
		return nil, c.p.storeError("sign_up", err)
	}
	c.p.logger.Info("user registered", zap.String("user_id", user.ID))

	if c.p.requireConfirmation {
		link, err := c.p.confirmationLink(user.ID)
		if err != nil {
			return nil, err
		}
		if err := c.p.confirmations.SendConfirmation(ctx, email, link); err != nil {
			c.p.logger.Warn("send confirmation failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return &SignUpResult{User: user, ConfirmationRequired: true}, nil
	}

	session, err := c.p.issueSession(user.ID, email)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, session, EventSignedIn)
	return &SignUpResult{User: user, Session: session}, nil
}

// SignOut ends the session of this client and of every other client signed
// in as the same user.
func (c *Client) SignOut(ctx context.Context) error {
	session := c.endSession(ctx)
	if session == nil {
		return nil
	}
	c.p.publishSignOut(ctx, session.UserID)
	return nil
}

// RefreshSession swaps the current token for a fresh one. The previous
// token is left to lapse at its own expiry: other client instances restored
// from it keep working.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	current, err := c.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	next, err := c.p.issueSession(current.UserID, current.Email)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, next, EventTokenRefreshed)
	return next, nil
}

// RefreshIfDue refreshes once less than half of the token lifetime remains.
// It returns the new session, or nil when no refresh was needed. An expired
// session is ended and reported as an AuthError.
func (c *Client) RefreshIfDue(ctx context.Context) (*Session, error) {
	current := c.Session()
	if current == nil {
		return nil, nil
	}
	if c.p.now().Before(current.ExpiresAt.Add(-c.p.tokenTTL / 2)) {
		return nil, nil
	}
	return c.RefreshSession(ctx)
}

// RestoreSession adopts a previously issued access token.
func (c *Client) RestoreSession(ctx context.Context, token string) (*Session, error) {
	claims, err := jwtutil.ParseToken(c.p.secret, strings.TrimSpace(token), jwtutil.PurposeAccess)
	if err != nil {
		return nil, &AuthError{Reason: ReasonInvalidToken, Message: "invalid session token", Err: err}
	}
	if c.p.isRevoked(ctx, claims.TokenID()) {
		return nil, authError(ReasonSessionExpired, "session has been signed out")
	}
	identity, err := c.p.identities.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, c.p.storeError("restore_session", err)
	}
	if identity == nil {
		return nil, authError(ReasonInvalidToken, "invalid session token")
	}
	session := &Session{
		AccessToken: token,
		TokenID:     claims.TokenID(),
		UserID:      identity.ID,
		Email:       identity.Email,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	c.setSession(ctx, session, EventInitialSession)
	return session, nil
}

// Close drops the session without revoking it and detaches the client from
// user-wide events.
func (c *Client) Close() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session != nil {
		c.p.unregister(c, session.UserID)
	}
}

func (c *Client) setSession(ctx context.Context, session *Session, evtType AuthEventType) {
	c.mu.Lock()
	previous := c.session
	c.session = session
	c.mu.Unlock()

	if previous != nil && previous.UserID != session.UserID {
		c.p.revoke(ctx, previous)
		c.p.unregister(c, previous.UserID)
	}
	c.p.register(c, session.UserID)
	c.p.metrics.IncAuthEvent(string(evtType))

	s := *session
	c.listeners.emit(ctx, AuthEvent{Type: evtType, Session: &s})
}

// endSession revokes and clears the session, notifying listeners. It returns
// the session that ended, or nil when there was none.
func (c *Client) endSession(ctx context.Context) *Session {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session == nil {
		return nil
	}

	c.p.revoke(ctx, session)
	c.p.unregister(c, session.UserID)
	c.p.metrics.IncAuthEvent(string(EventSignedOut))
	c.listeners.emit(ctx, AuthEvent{Type: EventSignedOut})
	return session
}

func (c *Client) requireSession(ctx context.Context) (*Session, error) {
	session := c.Session()
	if session == nil {
		return nil, authError(ReasonNoSession, "not signed in")
	}
	if !c.p.now().Before(session.ExpiresAt) || c.p.isRevoked(ctx, session.TokenID) {
		c.endSession(ctx)
		return nil, authError(ReasonSessionExpired, "session expired, sign in again")
	}
	return session, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
