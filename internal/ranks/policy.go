// Package ranks implements the rank authorization policy and the set-rank
// command flow on top of it.
package ranks

import "github.com/rolelink/rolelink/internal/groups"

// Actor is one side of a rank change: a linked player and their current
// rank in the group under evaluation.
type Actor struct {
	RobloxID string
	Rank     int
}

// CanSetRank decides whether a setter may move a target to requestedRank
// within a group. The setter must outrank (or equal) the target, must sit
// at or above the group's Officer threshold, and may only assign ranks
// strictly below their own. Exile (requestedRank 0) follows the identical
// rule and is trivially allowed for any ranked setter. Pure function.
func CanSetRank(setterRank, targetRank int, group groups.Group, requestedRank int) bool {
	return setterRank >= targetRank &&
		setterRank >= group.Classes.Officer &&
		requestedRank < setterRank
}

// Authorize applies CanSetRank plus the identity-level rule: self-targeting
// is rejected unconditionally, whatever the ranks involved. Pure function.
func Authorize(setter, target Actor, group groups.Group, requestedRank int) bool {
	if setter.RobloxID == target.RobloxID {
		return false
	}
	return CanSetRank(setter.Rank, target.Rank, group, requestedRank)
}
