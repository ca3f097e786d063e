package bindings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffAddsAndRemoves(t *testing.T) {
	diff := Diff(RoleSet([]string{"A", "B"}), RoleSet([]string{"B", "C"}), RoleSet([]string{"A", "B", "C"}))
	assert.Equal(t, []string{"C"}, diff.ToAdd)
	assert.Equal(t, []string{"A"}, diff.ToRemove)
}

func TestDiffNeverRemovesUnmanageableRoles(t *testing.T) {
	diff := Diff(RoleSet([]string{"A", "B"}), RoleSet([]string{"B", "C"}), RoleSet([]string{"B", "C"}))
	assert.Equal(t, []string{"C"}, diff.ToAdd)
	assert.Empty(t, diff.ToRemove)
}

func TestDiffNoChanges(t *testing.T) {
	diff := Diff(RoleSet([]string{"A"}), RoleSet([]string{"A"}), RoleSet([]string{"A"}))
	assert.True(t, diff.Empty())
}

func TestDiffDeterministicOrder(t *testing.T) {
	entitled := RoleSet([]string{"z", "m", "a"})
	diff := Diff(RoleSet(nil), entitled, RoleSet(nil))
	assert.Equal(t, []string{"a", "m", "z"}, diff.ToAdd)
}
