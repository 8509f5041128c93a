package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lumina/internal/backend"
)

type SignUpInput struct {
	Email    string
	Password string
	Username string
}

type SignInInput struct {
	Email    string
	Password string
}

// EmailConfirmer is implemented by *backend.Provider.
type EmailConfirmer interface {
	ConfirmEmail(ctx context.Context, token string) error
}

// AuthService runs the auth flows of a client instance. State follows from
// the backend's auth notifications, not from the return values here.
type AuthService struct {
	confirmer EmailConfirmer
	logger    *zap.Logger
}

func NewAuthService(confirmer EmailConfirmer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{confirmer: confirmer, logger: logger}
}

func (s *AuthService) SignUp(ctx context.Context, sess *Session, input SignUpInput) (*backend.SignUpResult, error) {
	result, err := sess.client.SignUp(ctx, input.Email, input.Password, strings.TrimSpace(input.Username))
	if err != nil {
		s.logger.Info("sign up rejected", zap.String("client_id", sess.id), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *AuthService) SignIn(ctx context.Context, sess *Session, input SignInInput) (*backend.Session, error) {
	session, err := sess.client.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		s.logger.Info("sign in rejected", zap.String("client_id", sess.id), zap.Error(err))
		return nil, err
	}
	return session, nil
}

func (s *AuthService) SignOut(ctx context.Context, sess *Session) error {
	return sess.client.SignOut(ctx)
}

func (s *AuthService) Refresh(ctx context.Context, sess *Session) (*backend.Session, error) {
	return sess.client.RefreshSession(ctx)
}

// KeepAlive refreshes the instance's token when it is due, so an active user
// is not signed out when the first token runs out. It returns the new
// session, or nil when nothing changed.
func (s *AuthService) KeepAlive(ctx context.Context, sess *Session) (*backend.Session, error) {
	session, err := sess.client.RefreshIfDue(ctx)
	if err != nil {
		s.logger.Info("session refresh failed", zap.String("client_id", sess.id), zap.Error(err))
		return nil, err
	}
	return session, nil
}

// Restore adopts a stored token for a fresh client instance. Any failure
// leaves the instance signed out.
func (s *AuthService) Restore(ctx context.Context, sess *Session, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	if _, err := sess.client.RestoreSession(ctx, token); err != nil {
		s.logger.Debug("restore session failed", zap.String("client_id", sess.id), zap.Error(err))
		return false
	}
	return true
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	return s.confirmer.ConfirmEmail(ctx, token)
}
