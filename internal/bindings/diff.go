package bindings

import "sort"

// RoleDiff is the role mutation set for one member, sorted for
// deterministic application order.
type RoleDiff struct {
	ToAdd    []string
	ToRemove []string
}

// Empty reports whether no mutation is needed.
func (d RoleDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Diff computes the role mutations turning current into entitled. Adds are
// unfiltered: entitled sets are built from configured roles, so granting is
// always within scope. Removals are restricted to the manageable set, so a
// role the bot cannot touch (integration-managed, above its highest role,
// or the server default) is never revoked even when not entitled.
// Pure function.
func Diff(current, entitled, manageable map[string]struct{}) RoleDiff {
	var diff RoleDiff
	for roleID := range entitled {
		if _, held := current[roleID]; !held {
			diff.ToAdd = append(diff.ToAdd, roleID)
		}
	}
	for roleID := range current {
		if _, ok := entitled[roleID]; ok {
			continue
		}
		if _, ok := manageable[roleID]; !ok {
			continue
		}
		diff.ToRemove = append(diff.ToRemove, roleID)
	}
	sort.Strings(diff.ToAdd)
	sort.Strings(diff.ToRemove)
	return diff
}

// RoleSet builds a set from a role id list.
func RoleSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
