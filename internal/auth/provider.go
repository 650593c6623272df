package auth

import (
	"context"
	"log/slog"
	"sync"
)

// UserProvider reports the signed-in user, if any.
type UserProvider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Identity is the signed-in account as the auth collaborator knows it.
type Identity struct {
	UserID string
	Email  string
}

// IdentityProvider also exposes the email of the signed-in user, which
// profile reconciliation matches local accounts against.
type IdentityProvider interface {
	UserProvider
	CurrentIdentity(ctx context.Context) (Identity, bool)
}

// StaticProvider always reports the same user. An empty id means signed out.
type StaticProvider struct {
	mu    sync.RWMutex
	ident Identity
}

// NewStaticProvider creates a provider for userID.
func NewStaticProvider(userID string) *StaticProvider {
	return &StaticProvider{ident: Identity{UserID: userID}}
}

// CurrentUserID implements UserProvider.
func (p *StaticProvider) CurrentUserID(ctx context.Context) (string, bool) {
	ident, ok := p.CurrentIdentity(ctx)
	return ident.UserID, ok
}

// CurrentIdentity implements IdentityProvider.
func (p *StaticProvider) CurrentIdentity(context.Context) (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ident, p.ident.UserID != ""
}

// Set switches the reported user.
func (p *StaticProvider) Set(userID string) {
	p.SetIdentity(Identity{UserID: userID})
}

// SetIdentity switches the reported user and email.
func (p *StaticProvider) SetIdentity(ident Identity) {
	p.mu.Lock()
	p.ident = ident
	p.mu.Unlock()
}

// SessionProvider holds the current session token and reports its verified
// subject. An expired or tampered token counts as signed out.
type SessionProvider struct {
	tokens *TokenService
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewSessionProvider creates a signed-out provider.
func NewSessionProvider(tokens *TokenService, logger *slog.Logger) *SessionProvider {
	return &SessionProvider{tokens: tokens, logger: logger}
}

// SetToken stores the token handed over by the auth collaborator after a
// successful sign-in. The token is verified up front.
func (p *SessionProvider) SetToken(token string) (*SessionClaims, error) {
	claims, err := p.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	return claims, nil
}

// Token returns the stored token for outgoing requests, or "".
func (p *SessionProvider) Token(context.Context) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Clear signs out.
func (p *SessionProvider) Clear() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

// CurrentUserID implements UserProvider.
func (p *SessionProvider) CurrentUserID(ctx context.Context) (string, bool) {
	ident, ok := p.CurrentIdentity(ctx)
	return ident.UserID, ok
}

// CurrentIdentity implements IdentityProvider.
func (p *SessionProvider) CurrentIdentity(ctx context.Context) (Identity, bool) {
	token := p.Token(ctx)
	if token == "" {
		return Identity{}, false
	}
	claims, err := p.tokens.Verify(token)
	if err != nil {
		p.logger.Debug("session token rejected", slog.String("error", err.Error()))
		return Identity{}, false
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return Identity{UserID: userID, Email: claims.Email}, userID != ""
}
