package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolelink/rolelink/internal/shared"
)

type stubLookup struct {
	creds map[string]Credential
	err   error
}

func (s *stubLookup) SessionByToken(ctx context.Context, token string) (Credential, error) {
	if s.err != nil {
		return Credential{}, s.err
	}
	cred, ok := s.creds[token]
	if !ok {
		return Credential{}, shared.ErrNotFound
	}
	return cred, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestVerifyUnexpiredIsIdempotent(t *testing.T) {
	now := time.Unix(1700000000, 0)
	stored := Credential{Token: "tok", RefreshToken: "ref", ExpiresAt: now.Unix() + 300}
	v := NewVerifier(&stubLookup{creds: map[string]Credential{"tok": stored}}, DefaultTTL).WithClock(fixedClock(now))

	cookie := Cookie{Token: "tok", RefreshToken: "ref"}
	for i := 0; i < 3; i++ {
		res, err := v.Verify(context.Background(), cookie, nil)
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.False(t, res.NeedsRotation)
		assert.Equal(t, stored, res.Credential)
	}
}

func TestVerifyExpiredWithMatchingRefreshRotates(t *testing.T) {
	now := time.Unix(1700000000, 0)
	stored := Credential{Token: "tok", RefreshToken: "ref", ExpiresAt: now.Unix() - 1}
	v := NewVerifier(&stubLookup{creds: map[string]Credential{"tok": stored}}, DefaultTTL).WithClock(fixedClock(now))

	res, err := v.Verify(context.Background(), Cookie{Token: "tok", RefreshToken: "ref"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.True(t, res.NeedsRotation)
	assert.NotEqual(t, stored.Token, res.Credential.Token)
	assert.NotEqual(t, stored.RefreshToken, res.Credential.RefreshToken)
	assert.NotEqual(t, res.Credential.Token, res.Credential.RefreshToken)
	assert.Equal(t, now.Add(DefaultTTL).Unix(), res.Credential.ExpiresAt)
}

func TestVerifyExpiredWithMismatchedRefreshFails(t *testing.T) {
	now := time.Unix(1700000000, 0)
	stored := Credential{Token: "tok", RefreshToken: "ref", ExpiresAt: now.Unix() - 1}
	v := NewVerifier(&stubLookup{creds: map[string]Credential{"tok": stored}}, DefaultTTL).WithClock(fixedClock(now))

	res, err := v.Verify(context.Background(), Cookie{Token: "tok", RefreshToken: "other"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.False(t, res.NeedsRotation)
}

func TestVerifyUnknownToken(t *testing.T) {
	v := NewVerifier(&stubLookup{creds: map[string]Credential{}}, DefaultTTL)

	res, err := v.Verify(context.Background(), Cookie{Token: "missing", RefreshToken: "ref"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerifyClearedCredentialIsLoggedOut(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := NewVerifier(nil, DefaultTTL).WithClock(fixedClock(now))

	// Stored credential provided by the caller but nulled out by logout.
	res, err := v.Verify(context.Background(), Cookie{Token: "tok", RefreshToken: "ref"}, &Credential{})
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerifyEmptyCookie(t *testing.T) {
	v := NewVerifier(&stubLookup{}, DefaultTTL)

	res, err := v.Verify(context.Background(), Cookie{}, nil)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerifyUsesCachedCredentialWithoutLookup(t *testing.T) {
	now := time.Unix(1700000000, 0)
	stored := Credential{Token: "tok", RefreshToken: "ref", ExpiresAt: now.Unix() + 60}
	// nil lookup: a lookup call would panic, proving the cached path is used.
	v := NewVerifier(nil, DefaultTTL).WithClock(fixedClock(now))

	res, err := v.Verify(context.Background(), Cookie{Token: "tok", RefreshToken: "ref"}, &stored)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, stored, res.Credential)
}

func TestNewCredentialMintsDistinctPairs(t *testing.T) {
	now := time.Now()
	a := NewCredential(now, time.Minute)
	b := NewCredential(now, time.Minute)
	assert.NotEqual(t, a.Token, b.Token)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
	assert.Len(t, a.Token, 64)
	assert.Len(t, a.RefreshToken, 64)
}
