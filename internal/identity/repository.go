package identity

import (
	"context"

	"github.com/rolelink/rolelink/internal/oauth"
	"github.com/rolelink/rolelink/internal/session"
)

// Repository is the identity store contract. The session verifier and the
// service stay ignorant of the storage technology behind it.
//
// Get* methods return shared.ErrNotFound when no record matches.
type Repository interface {
	GetByToken(ctx context.Context, token string) (*Identity, error)
	GetByDiscordID(ctx context.Context, discordID string) (*Identity, error)
	GetByRobloxID(ctx context.Context, robloxID string) (*Identity, error)

	// Upsert creates or replaces the record for identity.DiscordID.
	Upsert(ctx context.Context, identity *Identity) error

	// RotateSession swaps the session credential only if the stored
	// refresh token still equals oldRefreshToken (compare-and-swap), so
	// two concurrent rotations of the same expired session cannot both
	// win. Returns shared.ErrConflict when the swap loses.
	RotateSession(ctx context.Context, discordID, oldRefreshToken string, cred session.Credential) error

	// SetProvider updates the upstream Discord token pair alone.
	SetProvider(ctx context.Context, discordID string, pair oauth.TokenPair) error

	// LinkRoblox attaches a Roblox account.
	LinkRoblox(ctx context.Context, discordID, robloxID string) error
	// ClearRoblox detaches the Roblox account (unlink).
	ClearRoblox(ctx context.Context, discordID string) error

	// ClearSession nulls the session fields for the record holding the
	// token (logout). Clearing an already-cleared session is a no-op.
	ClearSession(ctx context.Context, token string) error

	// ListLinked returns discordID to robloxID for every linked identity.
	ListLinked(ctx context.Context) (map[string]string, error)
}
