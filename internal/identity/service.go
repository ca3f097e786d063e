package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rolelink/rolelink/internal/oauth"
	"github.com/rolelink/rolelink/internal/session"
	"github.com/rolelink/rolelink/internal/shared"
)

// Session establishes one authenticated request: the identity, and when
// rotation happened, the credential the handler must set as the new cookie.
type Session struct {
	Identity *Identity
	// Rotated is set when the opaque pair was re-minted; the caller must
	// write it back as the session cookie before responding.
	Rotated *session.Credential
}

// Cookie returns the credential the response cookie should carry.
func (s Session) Cookie() session.Credential {
	if s.Rotated != nil {
		return *s.Rotated
	}
	return s.Identity.Session
}

// Service orchestrates login, linking, and the session lifecycle across
// the two credential tiers.
type Service struct {
	repo     Repository
	verifier *session.Verifier
	discord  oauth.Client
	roblox   oauth.Client
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. ttl is the server-side session TTL.
func NewService(repo Repository, discord, roblox oauth.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return &Service{
		repo:     repo,
		verifier: session.NewVerifier(&tokenLookup{repo: repo}, ttl),
		discord:  discord,
		roblox:   roblox,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.verifier.WithClock(now)
	return s
}

// tokenLookup adapts the repository to the verifier's Lookup contract.
type tokenLookup struct {
	repo Repository
}

func (l *tokenLookup) SessionByToken(ctx context.Context, token string) (session.Credential, error) {
	ident, err := l.repo.GetByToken(ctx, token)
	if err != nil {
		return session.Credential{}, err
	}
	return ident.Session, nil
}

// Login exchanges a Discord authorization code, mints a fresh session
// pair, and creates or refreshes the identity record. An existing Roblox
// link survives re-login.
func (s *Service) Login(ctx context.Context, code string) (*Identity, oauth.Profile, error) {
	pair, err := s.discord.ExchangeCode(ctx, code)
	if err != nil {
		return nil, oauth.Profile{}, err
	}
	profile, err := s.discord.Profile(ctx, pair.AccessToken)
	if err != nil {
		return nil, oauth.Profile{}, err
	}

	ident := &Identity{
		DiscordID: profile.ID,
		Session:   session.NewCredential(s.now(), s.ttl),
		Provider:  pair,
	}
	if err := s.repo.Upsert(ctx, ident); err != nil {
		return nil, oauth.Profile{}, err
	}

	// Upsert preserves a prior link; reload to surface it.
	stored, err := s.repo.GetByDiscordID(ctx, profile.ID)
	if err == nil {
		ident.RobloxID = stored.RobloxID
	}

	s.logger.Info("login", slog.String("discord_id", profile.ID))
	return ident, profile, nil
}

// Authenticate verifies the presented cookie and persists a rotation when
// one is due. Rotation is compare-and-swap on the stored refresh token:
// of two concurrent requests racing an expired session, exactly one wins;
// the loser is treated as unauthenticated and will carry the winner's
// cookie after its client retries.
func (s *Service) Authenticate(ctx context.Context, cookie session.Cookie) (Session, error) {
	if cookie.Token == "" {
		return Session{}, shared.ErrUnauthenticated
	}

	ident, err := s.repo.GetByToken(ctx, cookie.Token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, shared.ErrUnauthenticated
		}
		return Session{}, err
	}

	result, err := s.verifier.Verify(ctx, cookie, &ident.Session)
	if err != nil {
		return Session{}, err
	}
	if !result.Verified {
		return Session{}, shared.ErrUnauthenticated
	}
	if !result.NeedsRotation {
		return Session{Identity: ident}, nil
	}

	if err := s.repo.RotateSession(ctx, ident.DiscordID, ident.Session.RefreshToken, result.Credential); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			// A concurrent request already rotated this session.
			return Session{}, shared.ErrUnauthenticated
		}
		return Session{}, err
	}

	rotated := result.Credential
	ident.Session = rotated
	return Session{Identity: ident, Rotated: &rotated}, nil
}

// FreshProviderToken returns a valid upstream Discord access token for the
// identity, lazily refreshing and persisting the pair once it has expired.
func (s *Service) FreshProviderToken(ctx context.Context, ident *Identity) (string, error) {
	if ident.Provider.Zero() {
		return "", shared.ErrUnauthenticated
	}
	pair, changed, err := oauth.RefreshIfExpired(ctx, s.discord, ident.Provider, s.now())
	if err != nil {
		return "", err
	}
	if changed {
		if err := s.repo.SetProvider(ctx, ident.DiscordID, pair); err != nil {
			return "", err
		}
		ident.Provider = pair
	}
	return pair.AccessToken, nil
}

// DiscordProfile loads the identity's Discord profile through a fresh
// provider token.
func (s *Service) DiscordProfile(ctx context.Context, ident *Identity) (oauth.Profile, error) {
	token, err := s.FreshProviderToken(ctx, ident)
	if err != nil {
		return oauth.Profile{}, err
	}
	return s.discord.Profile(ctx, token)
}

// LinkRoblox exchanges a Roblox authorization code for the authenticated
// identity and attaches the resulting account. The upstream Discord
// profile must still match the stored Discord id, guarding against a
// stolen session being linked to an attacker's Roblox account mid-flow.
func (s *Service) LinkRoblox(ctx context.Context, ident *Identity, code string) (*RobloxProfile, error) {
	profile, err := s.DiscordProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	if profile.ID != ident.DiscordID {
		return nil, fmt.Errorf("%w: discord id mismatch", shared.ErrUnauthenticated)
	}

	pair, err := s.roblox.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	robloxProfile, err := s.roblox.Profile(ctx, pair.AccessToken)
	if err != nil {
		return nil, err
	}

	if err := s.repo.LinkRoblox(ctx, ident.DiscordID, robloxProfile.ID); err != nil {
		return nil, err
	}
	ident.RobloxID = &robloxProfile.ID

	s.logger.Info("roblox linked",
		slog.String("discord_id", ident.DiscordID),
		slog.String("roblox_id", robloxProfile.ID))
	return &RobloxProfile{
		ID:          robloxProfile.ID,
		Username:    robloxProfile.Username,
		DisplayName: robloxProfile.DisplayName,
		Avatar:      robloxProfile.Avatar,
	}, nil
}

// Unlink detaches the Roblox account.
func (s *Service) Unlink(ctx context.Context, ident *Identity) error {
	return s.repo.ClearRoblox(ctx, ident.DiscordID)
}

// Logout clears the stored session pair for the presented token. Invalid
// tokens are ignored: logout must always succeed from the client's view.
func (s *Service) Logout(ctx context.Context, cookie session.Cookie) error {
	if cookie.Token == "" {
		return nil
	}
	return s.repo.ClearSession(ctx, cookie.Token)
}

// Repo exposes the repository for collaborators (jobs, rank commands).
func (s *Service) Repo() Repository {
	return s.repo
}
