package guilds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rolelink/rolelink/internal/shared"
)

const discordAPIBase = "https://discord.com/api/v10"

const memberPageSize = 1000

// DiscordDirectory implements Directory over the Discord REST API using
// the bot token.
type DiscordDirectory struct {
	http     *http.Client
	botToken string
	botID    string
	base     string
}

// NewDiscordDirectory constructs a DiscordDirectory. botID is the bot's own
// user id, used for BotMember lookups.
func NewDiscordDirectory(botToken, botID string) *DiscordDirectory {
	return &DiscordDirectory{
		http:     &http.Client{Timeout: 10 * time.Second},
		botToken: botToken,
		botID:    botID,
		base:     discordAPIBase,
	}
}

// WithBaseURL points the directory at a test server.
func (d *DiscordDirectory) WithBaseURL(base string) *DiscordDirectory {
	d.base = base
	return d
}

type roleEnvelope struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Managed     bool   `json:"managed"`
	Permissions string `json:"permissions"`
}

func (e roleEnvelope) toRole() Role {
	perms, _ := strconv.ParseInt(e.Permissions, 10, 64)
	return Role{
		ID:          e.ID,
		Name:        e.Name,
		Color:       e.Color,
		Position:    e.Position,
		Managed:     e.Managed,
		Permissions: perms,
	}
}

type memberEnvelope struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Roles []string `json:"roles"`
}

// Roles lists the live role catalog of a server.
func (d *DiscordDirectory) Roles(ctx context.Context, serverID string) ([]Role, error) {
	var payload []roleEnvelope
	if err := d.get(ctx, fmt.Sprintf("/guilds/%s/roles", serverID), "Bot "+d.botToken, &payload); err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(payload))
	for _, e := range payload {
		roles = append(roles, e.toRole())
	}
	return roles, nil
}

// Member fetches a guild member with permissions resolved from its roles.
func (d *DiscordDirectory) Member(ctx context.Context, serverID, userID string) (Member, error) {
	var payload memberEnvelope
	if err := d.get(ctx, fmt.Sprintf("/guilds/%s/members/%s", serverID, userID), "Bot "+d.botToken, &payload); err != nil {
		return Member{}, err
	}
	roles, err := d.Roles(ctx, serverID)
	if err != nil {
		return Member{}, err
	}
	return resolveMember(serverID, payload, roles), nil
}

// BotMember fetches the bot's own membership in the server.
func (d *DiscordDirectory) BotMember(ctx context.Context, serverID string) (Member, error) {
	return d.Member(ctx, serverID, d.botID)
}

// Members lists the members of a server, paging through the listing API.
func (d *DiscordDirectory) Members(ctx context.Context, serverID string) ([]Member, error) {
	roles, err := d.Roles(ctx, serverID)
	if err != nil {
		return nil, err
	}

	var members []Member
	after := ""
	for {
		path := fmt.Sprintf("/guilds/%s/members?limit=%d", serverID, memberPageSize)
		if after != "" {
			path += "&after=" + after
		}
		var page []memberEnvelope
		if err := d.get(ctx, path, "Bot "+d.botToken, &page); err != nil {
			return nil, err
		}
		for _, entry := range page {
			members = append(members, resolveMember(serverID, entry, roles))
		}
		if len(page) < memberPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// Guilds lists the servers the bot is installed in.
func (d *DiscordDirectory) Guilds(ctx context.Context) ([]Guild, error) {
	return d.listGuilds(ctx, "Bot "+d.botToken)
}

// UserGuilds lists the servers a user belongs to via their OAuth token.
func (d *DiscordDirectory) UserGuilds(ctx context.Context, accessToken string) ([]Guild, error) {
	return d.listGuilds(ctx, "Bearer "+accessToken)
}

func (d *DiscordDirectory) listGuilds(ctx context.Context, authorization string) ([]Guild, error) {
	var payload []struct {
		ID                     string `json:"id"`
		Name                   string `json:"name"`
		Icon                   string `json:"icon"`
		ApproximateMemberCount int    `json:"approximate_member_count"`
		Permissions            string `json:"permissions"`
	}
	if err := d.get(ctx, "/users/@me/guilds?with_counts=true", authorization, &payload); err != nil {
		return nil, err
	}
	guilds := make([]Guild, 0, len(payload))
	for _, g := range payload {
		perms, _ := strconv.ParseInt(g.Permissions, 10, 64)
		guilds = append(guilds, Guild{ID: g.ID, Name: g.Name, Icon: g.Icon, MemberCount: g.ApproximateMemberCount, Permissions: perms})
	}
	return guilds, nil
}

// AddRole grants a role. Discord treats re-granting a held role as a no-op.
func (d *DiscordDirectory) AddRole(ctx context.Context, serverID, userID, roleID string) error {
	return d.mutateRole(ctx, http.MethodPut, serverID, userID, roleID)
}

// RemoveRole revokes a role. A 404 for an absent grant counts as done so
// the mutation stays idempotent.
func (d *DiscordDirectory) RemoveRole(ctx context.Context, serverID, userID, roleID string) error {
	return d.mutateRole(ctx, http.MethodDelete, serverID, userID, roleID)
}

func (d *DiscordDirectory) mutateRole(ctx context.Context, method, serverID, userID, roleID string) error {
	url := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s", d.base, serverID, userID, roleID)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+d.botToken)

	res, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: discord: %v", shared.ErrProvider, err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		if method == http.MethodDelete {
			return nil
		}
		return shared.ErrNotFound
	default:
		return fmt.Errorf("%w: discord: status %d", shared.ErrProvider, res.StatusCode)
	}
}

func (d *DiscordDirectory) get(ctx context.Context, path, authorization string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authorization)

	res, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: discord: %v", shared.ErrProvider, err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: discord: status %d", shared.ErrProvider, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: discord decode: %v", shared.ErrProvider, err)
	}
	return nil
}

func resolveMember(serverID string, entry memberEnvelope, catalog []Role) Member {
	member := Member{UserID: entry.User.ID, RoleIDs: entry.Roles}
	byID := make(map[string]Role, len(catalog))
	for _, role := range catalog {
		byID[role.ID] = role
		// The @everyone role applies to every member.
		if role.ID == serverID {
			member.Permissions |= role.Permissions
		}
	}
	for _, id := range entry.Roles {
		role, ok := byID[id]
		if !ok {
			continue
		}
		member.Permissions |= role.Permissions
		if role.Position > member.TopPosition {
			member.TopPosition = role.Position
		}
	}
	return member
}
