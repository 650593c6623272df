package auth

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestTokens(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	s, err := NewTokenService(testKey, ttl)
	require.NoError(t, err)
	return s
}

func TestNewTokenService_RejectsBadKeys(t *testing.T) {
	_, err := NewTokenService("abc", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(strings.Repeat("zz", 32), time.Hour)
	assert.Error(t, err)
}

func TestTokenService_IssueVerify(t *testing.T) {
	s := newTestTokens(t, time.Hour)

	token, err := s.Issue("user-1", "a@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestTokenService_RejectsForeignKey(t *testing.T) {
	token, err := newTestTokens(t, time.Hour).Issue("user-1", "a@example.com")
	require.NoError(t, err)

	other, err := NewTokenService(strings.Repeat("ab", 32), time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	s := newTestTokens(t, time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := s.Issue("user-1", "a@example.com")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider("")
	_, ok := p.CurrentUserID(context.Background())
	assert.False(t, ok)

	p.Set("user-2")
	id, ok := p.CurrentUserID(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "user-2", id)
}

func TestSessionProvider(t *testing.T) {
	s := newTestTokens(t, time.Hour)
	p := NewSessionProvider(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	_, ok := p.CurrentUserID(ctx)
	assert.False(t, ok)

	_, err := p.SetToken("v4.local.garbage")
	assert.Error(t, err)
	assert.Empty(t, p.Token(ctx))

	token, err := s.Issue("user-3", "c@example.com")
	require.NoError(t, err)
	claims, err := p.SetToken(token)
	require.NoError(t, err)
	assert.Equal(t, "c@example.com", claims.Email)

	id, ok := p.CurrentUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-3", id)

	ident, ok := p.CurrentIdentity(ctx)
	assert.True(t, ok)
	assert.Equal(t, Identity{UserID: "user-3", Email: "c@example.com"}, ident)

	p.Clear()
	_, ok = p.CurrentUserID(ctx)
	assert.False(t, ok)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyHexLength)

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = NewTokenService(first, time.Hour)
	assert.NoError(t, err)
}
