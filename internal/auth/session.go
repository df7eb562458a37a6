package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// renewSkew renews a token slightly before the provider would reject it.
const renewSkew = time.Minute

// ErrNotRenewable is returned by Renew on sessions without a refresh path.
var ErrNotRenewable = errors.New("session cannot be renewed")

// Credential is a bearer token issued by the identity provider.
type Credential struct {
	UserID       string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Renewer exchanges a refresh token for a fresh credential.
type Renewer interface {
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// Session is the explicit authentication context handed to every backend
// call. It is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	cred    Credential
	renewer Renewer
	onRenew []func(Credential)
	now     func() time.Time
}

// NewSession wraps a credential. renewer may be nil for non-renewable sessions.
func NewSession(cred Credential, renewer Renewer) *Session {
	return &Session{cred: cred, renewer: renewer, now: time.Now}
}

// NewStaticSession wraps a bare token that never expires and cannot renew.
func NewStaticSession(token string) *Session {
	return NewSession(Credential{IDToken: token}, nil)
}

// Credential returns a copy of the current credential.
func (s *Session) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// OnRenew registers a hook invoked with every renewed credential.
func (s *Session) OnRenew(fn func(Credential)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRenew = append(s.onRenew, fn)
}

// Token returns a usable bearer token, renewing first if the current one is
// about to expire.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	cred := s.cred
	expiring := !cred.ExpiresAt.IsZero() && s.now().Add(renewSkew).After(cred.ExpiresAt)
	canRenew := s.renewer != nil && cred.RefreshToken != ""
	s.mu.Unlock()

	if expiring && canRenew {
		return s.Renew(ctx)
	}
	if cred.IDToken == "" {
		return "", errors.New("session has no token")
	}
	return cred.IDToken, nil
}

// Renew unconditionally exchanges the refresh token and returns the fresh
// bearer token.
func (s *Session) Renew(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.renewer == nil || s.cred.RefreshToken == "" {
		s.mu.Unlock()
		return "", ErrNotRenewable
	}
	fresh, err := s.renewer.Refresh(ctx, s.cred.RefreshToken)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to renew session: %w", err)
	}
	if fresh.Email == "" {
		fresh.Email = s.cred.Email
	}
	if fresh.UserID == "" {
		fresh.UserID = s.cred.UserID
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.cred.RefreshToken
	}
	s.cred = *fresh
	hooks := append([]func(Credential){}, s.onRenew...)
	cred := s.cred
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(cred)
	}
	return cred.IDToken, nil
}
