package bindings

// Resolve computes the entitled role set for a member's current rank in
// a group. Rules are additive, not prioritized: entitlement is the union
// of the role sets of every rule whose predicate holds. Rules for other
// groups are skipped. Pure function; safe for concurrent use.
func Resolve(groupName string, currentRank int, rules []Rule) map[string]struct{} {
	entitled := make(map[string]struct{})
	for _, rule := range rules {
		if rule.GroupName != groupName {
			continue
		}
		if !rule.Matches(currentRank) {
			continue
		}
		for _, roleID := range rule.Roles {
			entitled[roleID] = struct{}{}
		}
	}
	return entitled
}

// ResolveAll unions entitlement across every group the member holds a rank
// in. ranks maps group name to current rank.
func ResolveAll(ranks map[string]int, rules []Rule) map[string]struct{} {
	entitled := make(map[string]struct{})
	for groupName, rank := range ranks {
		for roleID := range Resolve(groupName, rank, rules) {
			entitled[roleID] = struct{}{}
		}
	}
	return entitled
}
