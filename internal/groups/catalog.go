// Package groups holds the static group catalog: every rankable group the
// service knows about, its rank table, and the classification thresholds
// used by the rank authorization policy.
package groups

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed groups.json
var catalogData []byte

// Classes are rank thresholds partitioning a group into classifications.
// A member whose rank is at or above a threshold belongs to that class.
type Classes struct {
	Member  int `json:"Member"`
	Officer int `json:"Officer"`
	Command int `json:"Command"`
	Leader  int `json:"Leader"`
}

// Group is one catalog entry. Ranks maps the numeric rank (as a string key,
// mirroring the stored catalog format) to its display name. Rank 0 means
// "not a member" and never appears in the table.
type Group struct {
	Name     string            `json:"Name"`
	Icon     string            `json:"Icon"`
	Parent   *string           `json:"Parent"`
	IsPublic bool              `json:"IsPublic"`
	IsHidden bool              `json:"IsHidden"`
	Classes  Classes           `json:"Classes"`
	Ranks    map[string]string `json:"Ranks"`
}

// RankCount returns the highest valid rank in the group.
func (g Group) RankCount() int {
	return len(g.Ranks)
}

// RankName resolves a numeric rank to its display name.
func (g Group) RankName(rank int) (string, bool) {
	name, ok := g.Ranks[fmt.Sprintf("%d", rank)]
	return name, ok
}

// Catalog is an immutable lookup over the configured groups.
type Catalog struct {
	groups map[string]Group
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return LoadFrom(catalogData)
}

// LoadFrom parses a catalog document, keyed by group name.
func LoadFrom(data []byte) (*Catalog, error) {
	var groups map[string]Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("groups: parse catalog: %w", err)
	}
	for name, group := range groups {
		group.Name = name
		groups[name] = group
	}
	return &Catalog{groups: groups}, nil
}

// Lookup resolves a group by name.
func (c *Catalog) Lookup(name string) (Group, bool) {
	group, ok := c.groups[name]
	return group, ok
}

// Names returns all group names in stable order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
