package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolelink/rolelink/internal/oauth"
	"github.com/rolelink/rolelink/internal/platform/db"
	"github.com/rolelink/rolelink/internal/session"
	"github.com/rolelink/rolelink/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for identities.
// The users table carries both credential tiers as separate column
// families; session_token and roblox_id hold unique indexes.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `
	discord_id, roblox_id,
	session_token, session_refresh_token, session_expires,
	provider_token, provider_refresh_token, provider_expires`

// GetByToken looks an identity up by its session token.
func (r *PGRepository) GetByToken(ctx context.Context, token string) (*Identity, error) {
	return r.getOne(ctx, `WHERE session_token = $1`, token)
}

// GetByDiscordID looks an identity up by its Discord id.
func (r *PGRepository) GetByDiscordID(ctx context.Context, discordID string) (*Identity, error) {
	return r.getOne(ctx, `WHERE discord_id = $1`, discordID)
}

// GetByRobloxID looks an identity up by its linked Roblox id.
func (r *PGRepository) GetByRobloxID(ctx context.Context, robloxID string) (*Identity, error) {
	return r.getOne(ctx, `WHERE roblox_id = $1`, robloxID)
}

func (r *PGRepository) getOne(ctx context.Context, where string, arg any) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users `+where, arg)

	var (
		ident           Identity
		sessionToken    *string
		sessionRefresh  *string
		sessionExpires  *int64
		providerToken   *string
		providerRefresh *string
		providerExpires *int64
	)
	err := row.Scan(
		&ident.DiscordID, &ident.RobloxID,
		&sessionToken, &sessionRefresh, &sessionExpires,
		&providerToken, &providerRefresh, &providerExpires,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, db.Classify(err)
	}

	if sessionToken != nil && sessionRefresh != nil {
		ident.Session = session.Credential{
			Token:        *sessionToken,
			RefreshToken: *sessionRefresh,
		}
		if sessionExpires != nil {
			ident.Session.ExpiresAt = *sessionExpires
		}
	}
	if providerToken != nil && providerRefresh != nil {
		ident.Provider = oauth.TokenPair{
			AccessToken:  *providerToken,
			RefreshToken: *providerRefresh,
		}
		if providerExpires != nil {
			ident.Provider.ExpiresAt = *providerExpires
		}
	}
	return &ident, nil
}

// Upsert creates or replaces the record keyed by discord id.
func (r *PGRepository) Upsert(ctx context.Context, ident *Identity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (discord_id) DO UPDATE SET
			session_token = EXCLUDED.session_token,
			session_refresh_token = EXCLUDED.session_refresh_token,
			session_expires = EXCLUDED.session_expires,
			provider_token = EXCLUDED.provider_token,
			provider_refresh_token = EXCLUDED.provider_refresh_token,
			provider_expires = EXCLUDED.provider_expires`,
		ident.DiscordID, ident.RobloxID,
		nullable(ident.Session.Token), nullable(ident.Session.RefreshToken), nullableInt(ident.Session.ExpiresAt),
		nullable(ident.Provider.AccessToken), nullable(ident.Provider.RefreshToken), nullableInt(ident.Provider.ExpiresAt),
	)
	return db.Classify(err)
}

// RotateSession swaps the session credential via compare-and-swap on the
// stored refresh token. A concurrent rotation that already won leaves no
// matching row and the call reports shared.ErrConflict.
func (r *PGRepository) RotateSession(ctx context.Context, discordID, oldRefreshToken string, cred session.Credential) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_token = $1, session_refresh_token = $2, session_expires = $3
		WHERE discord_id = $4 AND session_refresh_token = $5`,
		cred.Token, cred.RefreshToken, cred.ExpiresAt, discordID, oldRefreshToken)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity: rotate session for %s: %w", discordID, shared.ErrConflict)
	}
	return nil
}

// SetProvider updates the upstream token pair alone.
func (r *PGRepository) SetProvider(ctx context.Context, discordID string, pair oauth.TokenPair) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET provider_token = $1, provider_refresh_token = $2, provider_expires = $3
		WHERE discord_id = $4`,
		pair.AccessToken, pair.RefreshToken, pair.ExpiresAt, discordID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// LinkRoblox attaches the Roblox account.
func (r *PGRepository) LinkRoblox(ctx context.Context, discordID, robloxID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET roblox_id = $1 WHERE discord_id = $2`, robloxID, discordID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClearRoblox detaches the Roblox account.
func (r *PGRepository) ClearRoblox(ctx context.Context, discordID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET roblox_id = NULL WHERE discord_id = $1`, discordID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClearSession nulls the session fields for the record holding the token.
func (r *PGRepository) ClearSession(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_token = NULL, session_refresh_token = NULL, session_expires = NULL
		WHERE session_token = $1`, token)
	return db.Classify(err)
}

// ListLinked returns discord to roblox id for every linked identity.
func (r *PGRepository) ListLinked(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT discord_id, roblox_id FROM users WHERE roblox_id IS NOT NULL`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	linked := make(map[string]string)
	for rows.Next() {
		var discordID, robloxID string
		if err := rows.Scan(&discordID, &robloxID); err != nil {
			return nil, db.Classify(err)
		}
		linked[discordID] = robloxID
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return linked, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
