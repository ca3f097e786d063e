// Package guilds exposes the Discord guild and role directory the role
// sync and binding layers depend on: live role catalogs, member lookups,
// and idempotent role mutations bounded by the bot's own scope.
package guilds

import "context"

// Permission bits the service cares about.
const (
	PermissionAdministrator int64 = 1 << 3
	PermissionManageRoles   int64 = 1 << 28
)

// Role is one entry of a server's live role catalog.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
	Managed  bool   `json:"managed"`
	// Permissions is the role's permission bitset.
	Permissions int64 `json:"-"`
}

// Member is a guild member with resolved permissions.
type Member struct {
	UserID      string
	RoleIDs     []string
	Permissions int64
	// TopPosition is the position of the member's highest role.
	TopPosition int
}

// Admin reports whether the member holds the Administrator permission.
func (m Member) Admin() bool {
	return m.Permissions&PermissionAdministrator != 0
}

// hasRole reports whether the member currently holds the role.
func (m Member) hasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Guild is a server visible to the bot or to a user's OAuth token.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	MemberCount int    `json:"memberCount"`
	// Permissions is the requesting user's permission bitset in the
	// guild. Only populated on UserGuilds listings.
	Permissions int64 `json:"-"`
}

// Admin reports whether the listing's user administers the guild.
func (g Guild) Admin() bool {
	return g.Permissions&PermissionAdministrator != 0
}

// Directory is the guild/role collaborator contract. AddRole and RemoveRole
// are idempotent: granting a held role or revoking an absent one is a no-op.
type Directory interface {
	Roles(ctx context.Context, serverID string) ([]Role, error)
	Member(ctx context.Context, serverID, userID string) (Member, error)
	BotMember(ctx context.Context, serverID string) (Member, error)
	Members(ctx context.Context, serverID string) ([]Member, error)
	Guilds(ctx context.Context) ([]Guild, error)
	UserGuilds(ctx context.Context, accessToken string) ([]Guild, error)
	AddRole(ctx context.Context, serverID, userID, roleID string) error
	RemoveRole(ctx context.Context, serverID, userID, roleID string) error
}
