package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolelink/rolelink/internal/oauth"
	"github.com/rolelink/rolelink/internal/session"
	"github.com/rolelink/rolelink/internal/shared"
)

// memoryRepo is an in-memory Repository with real compare-and-swap
// semantics, so rotation races can be exercised without a database.
type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*Identity
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*Identity)}
}

func (r *memoryRepo) GetByToken(ctx context.Context, token string) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ident := range r.records {
		if ident.Session.Token == token && token != "" {
			clone := *ident
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) GetByDiscordID(ctx context.Context, discordID string) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.records[discordID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *ident
	return &clone, nil
}

func (r *memoryRepo) GetByRobloxID(ctx context.Context, robloxID string) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ident := range r.records {
		if ident.RobloxID != nil && *ident.RobloxID == robloxID {
			clone := *ident
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Upsert(ctx context.Context, ident *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *ident
	if existing, ok := r.records[ident.DiscordID]; ok {
		clone.RobloxID = existing.RobloxID
	}
	r.records[ident.DiscordID] = &clone
	return nil
}

func (r *memoryRepo) RotateSession(ctx context.Context, discordID, oldRefreshToken string, cred session.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.records[discordID]
	if !ok || ident.Session.RefreshToken != oldRefreshToken {
		return shared.ErrConflict
	}
	ident.Session = cred
	return nil
}

func (r *memoryRepo) SetProvider(ctx context.Context, discordID string, pair oauth.TokenPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.records[discordID]
	if !ok {
		return shared.ErrNotFound
	}
	ident.Provider = pair
	return nil
}

func (r *memoryRepo) LinkRoblox(ctx context.Context, discordID, robloxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.records[discordID]
	if !ok {
		return shared.ErrNotFound
	}
	ident.RobloxID = &robloxID
	return nil
}

func (r *memoryRepo) ClearRoblox(ctx context.Context, discordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.records[discordID]
	if !ok {
		return shared.ErrNotFound
	}
	ident.RobloxID = nil
	return nil
}

func (r *memoryRepo) ClearSession(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ident := range r.records {
		if ident.Session.Token == token {
			ident.Session = session.Credential{}
		}
	}
	return nil
}

func (r *memoryRepo) ListLinked(ctx context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	linked := make(map[string]string)
	for id, ident := range r.records {
		if ident.RobloxID != nil {
			linked[id] = *ident.RobloxID
		}
	}
	return linked, nil
}

// fakeOAuth is a canned oauth.Client.
type fakeOAuth struct {
	pair      oauth.TokenPair
	profile   oauth.Profile
	exchanges int
	refreshes int
	err       error
}

func (f *fakeOAuth) ExchangeCode(ctx context.Context, code string) (oauth.TokenPair, error) {
	f.exchanges++
	return f.pair, f.err
}

func (f *fakeOAuth) Refresh(ctx context.Context, pair oauth.TokenPair) (oauth.TokenPair, error) {
	f.refreshes++
	return f.pair, f.err
}

func (f *fakeOAuth) Profile(ctx context.Context, accessToken string) (oauth.Profile, error) {
	return f.profile, f.err
}

func newTestService(repo Repository, discord, roblox oauth.Client) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, discord, roblox, session.DefaultTTL, logger)
}

func TestLogin(t *testing.T) {
	repo := newMemoryRepo()
	discord := &fakeOAuth{
		pair:    oauth.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour).Unix()},
		profile: oauth.Profile{ID: "d1", Username: "alice"},
	}
	svc := newTestService(repo, discord, &fakeOAuth{})

	ident, profile, err := svc.Login(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.NotEmpty(t, ident.Session.Token)
	assert.NotEmpty(t, ident.Session.RefreshToken)

	stored, err := repo.GetByDiscordID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, ident.Session.Token, stored.Session.Token)
}

func TestLoginPreservesLink(t *testing.T) {
	repo := newMemoryRepo()
	robloxID := "500"
	require.NoError(t, repo.Upsert(context.Background(), &Identity{DiscordID: "d1"}))
	require.NoError(t, repo.LinkRoblox(context.Background(), "d1", robloxID))

	discord := &fakeOAuth{profile: oauth.Profile{ID: "d1"}}
	svc := newTestService(repo, discord, &fakeOAuth{})

	ident, _, err := svc.Login(context.Background(), "code")
	require.NoError(t, err)
	require.NotNil(t, ident.RobloxID)
	assert.Equal(t, robloxID, *ident.RobloxID)
}

func TestAuthenticate(t *testing.T) {
	login := func(t *testing.T) (*Service, *memoryRepo, *Identity) {
		t.Helper()
		repo := newMemoryRepo()
		discord := &fakeOAuth{profile: oauth.Profile{ID: "d1"}}
		svc := newTestService(repo, discord, &fakeOAuth{})
		ident, _, err := svc.Login(context.Background(), "code")
		require.NoError(t, err)
		return svc, repo, ident
	}

	t.Run("unexpired session passes unchanged", func(t *testing.T) {
		svc, _, ident := login(t)
		sess, err := svc.Authenticate(context.Background(), session.Cookie{
			Token:        ident.Session.Token,
			RefreshToken: ident.Session.RefreshToken,
		})
		require.NoError(t, err)
		assert.Nil(t, sess.Rotated)
		assert.Equal(t, ident.Session.Token, sess.Cookie().Token)
	})

	t.Run("expired session rotates and persists", func(t *testing.T) {
		svc, repo, ident := login(t)
		svc.WithClock(func() time.Time { return time.Now().Add(time.Hour) })

		sess, err := svc.Authenticate(context.Background(), session.Cookie{
			Token:        ident.Session.Token,
			RefreshToken: ident.Session.RefreshToken,
		})
		require.NoError(t, err)
		require.NotNil(t, sess.Rotated)
		assert.NotEqual(t, ident.Session.Token, sess.Rotated.Token)

		stored, err := repo.GetByDiscordID(context.Background(), "d1")
		require.NoError(t, err)
		assert.Equal(t, sess.Rotated.Token, stored.Session.Token)
	})

	t.Run("second rotation with the old pair loses", func(t *testing.T) {
		svc, _, ident := login(t)
		svc.WithClock(func() time.Time { return time.Now().Add(time.Hour) })
		cookie := session.Cookie{
			Token:        ident.Session.Token,
			RefreshToken: ident.Session.RefreshToken,
		}

		_, err := svc.Authenticate(context.Background(), cookie)
		require.NoError(t, err)

		_, err = svc.Authenticate(context.Background(), cookie)
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})

	t.Run("refresh token mismatch on expired session", func(t *testing.T) {
		svc, _, ident := login(t)
		svc.WithClock(func() time.Time { return time.Now().Add(time.Hour) })

		_, err := svc.Authenticate(context.Background(), session.Cookie{
			Token:        ident.Session.Token,
			RefreshToken: "stolen",
		})
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _, _ := login(t)
		_, err := svc.Authenticate(context.Background(), session.Cookie{Token: "nope", RefreshToken: "nope"})
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})

	t.Run("empty cookie", func(t *testing.T) {
		svc, _, _ := login(t)
		_, err := svc.Authenticate(context.Background(), session.Cookie{})
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})

	t.Run("cleared session after logout", func(t *testing.T) {
		svc, _, ident := login(t)
		cookie := session.Cookie{
			Token:        ident.Session.Token,
			RefreshToken: ident.Session.RefreshToken,
		}
		require.NoError(t, svc.Logout(context.Background(), cookie))

		_, err := svc.Authenticate(context.Background(), cookie)
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})
}

func TestFreshProviderToken(t *testing.T) {
	t.Run("unexpired pair reused without refresh", func(t *testing.T) {
		repo := newMemoryRepo()
		discord := &fakeOAuth{}
		svc := newTestService(repo, discord, &fakeOAuth{})

		ident := &Identity{
			DiscordID: "d1",
			Provider:  oauth.TokenPair{AccessToken: "live", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour).Unix()},
		}
		require.NoError(t, repo.Upsert(context.Background(), ident))

		token, err := svc.FreshProviderToken(context.Background(), ident)
		require.NoError(t, err)
		assert.Equal(t, "live", token)
		assert.Zero(t, discord.refreshes)
	})

	t.Run("expired pair refreshed and persisted", func(t *testing.T) {
		repo := newMemoryRepo()
		discord := &fakeOAuth{
			pair: oauth.TokenPair{AccessToken: "fresh", RefreshToken: "rt2", ExpiresAt: time.Now().Add(time.Hour).Unix()},
		}
		svc := newTestService(repo, discord, &fakeOAuth{})

		ident := &Identity{
			DiscordID: "d1",
			Provider:  oauth.TokenPair{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute).Unix()},
		}
		require.NoError(t, repo.Upsert(context.Background(), ident))

		token, err := svc.FreshProviderToken(context.Background(), ident)
		require.NoError(t, err)
		assert.Equal(t, "fresh", token)
		assert.Equal(t, 1, discord.refreshes)

		stored, err := repo.GetByDiscordID(context.Background(), "d1")
		require.NoError(t, err)
		assert.Equal(t, "fresh", stored.Provider.AccessToken)
	})

	t.Run("no provider pair", func(t *testing.T) {
		svc := newTestService(newMemoryRepo(), &fakeOAuth{}, &fakeOAuth{})
		_, err := svc.FreshProviderToken(context.Background(), &Identity{DiscordID: "d1"})
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})
}

func TestLinkRoblox(t *testing.T) {
	t.Run("links and persists", func(t *testing.T) {
		repo := newMemoryRepo()
		discord := &fakeOAuth{
			pair:    oauth.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour).Unix()},
			profile: oauth.Profile{ID: "d1"},
		}
		robloxClient := &fakeOAuth{profile: oauth.Profile{ID: "900", Username: "builder"}}
		svc := newTestService(repo, discord, robloxClient)

		ident, _, err := svc.Login(context.Background(), "code")
		require.NoError(t, err)

		profile, err := svc.LinkRoblox(context.Background(), ident, "roblox-code")
		require.NoError(t, err)
		assert.Equal(t, "900", profile.ID)

		stored, err := repo.GetByDiscordID(context.Background(), "d1")
		require.NoError(t, err)
		require.NotNil(t, stored.RobloxID)
		assert.Equal(t, "900", *stored.RobloxID)
	})

	t.Run("discord id mismatch rejected", func(t *testing.T) {
		repo := newMemoryRepo()
		discord := &fakeOAuth{profile: oauth.Profile{ID: "other"}}
		svc := newTestService(repo, discord, &fakeOAuth{})

		ident := &Identity{
			DiscordID: "d1",
			Provider:  oauth.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour).Unix()},
		}
		require.NoError(t, repo.Upsert(context.Background(), ident))

		_, err := svc.LinkRoblox(context.Background(), ident, "roblox-code")
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
	})
}

func TestUnlink(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeOAuth{}, &fakeOAuth{})

	require.NoError(t, repo.Upsert(context.Background(), &Identity{DiscordID: "d1"}))
	require.NoError(t, repo.LinkRoblox(context.Background(), "d1", "900"))

	require.NoError(t, svc.Unlink(context.Background(), &Identity{DiscordID: "d1"}))

	stored, err := repo.GetByDiscordID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Nil(t, stored.RobloxID)
}

func TestLogoutEmptyCookie(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeOAuth{}, &fakeOAuth{})
	require.NoError(t, svc.Logout(context.Background(), session.Cookie{}))
}

func TestProviderFailureSurfaces(t *testing.T) {
	discord := &fakeOAuth{err: errors.New("discord down")}
	svc := newTestService(newMemoryRepo(), discord, &fakeOAuth{})

	_, _, err := svc.Login(context.Background(), "code")
	require.Error(t, err)
}
