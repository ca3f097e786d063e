package guilds

import "sort"

// Manageable returns the subset of a server's roles the bot may grant or
// revoke: not integration-managed, not the server default role, strictly
// below the bot's highest role, and only when the bot itself holds
// ManageRoles or Administrator. Roles outside this set must never be
// removed, even when a member is not entitled to them.
func Manageable(all []Role, bot Member, serverID string) map[string]struct{} {
	manageable := make(map[string]struct{})
	if bot.Permissions&(PermissionManageRoles|PermissionAdministrator) == 0 {
		return manageable
	}
	for _, role := range all {
		if role.Managed {
			continue
		}
		// The @everyone role shares its id with the guild.
		if role.ID == serverID {
			continue
		}
		if role.Position >= bot.TopPosition {
			continue
		}
		manageable[role.ID] = struct{}{}
	}
	return manageable
}

// ManageableRoles is Manageable keeping the role objects, ordered top
// role first the way Discord renders them.
func ManageableRoles(all []Role, bot Member, serverID string) []Role {
	ids := Manageable(all, bot, serverID)
	roles := make([]Role, 0, len(ids))
	for _, role := range all {
		if _, ok := ids[role.ID]; ok {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })
	return roles
}
