// Package identity links a Discord account and a Roblox account into one
// record and manages its two credential tiers: the server's own opaque
// session pair and the upstream Discord OAuth pair. The two are distinct
// records with independent lifecycles; conflating their rotation is the
// bug class this layout exists to prevent.
package identity

import (
	"github.com/rolelink/rolelink/internal/oauth"
	"github.com/rolelink/rolelink/internal/session"
)

// Identity is one linked account, keyed by the stable Discord id.
// RobloxID is nil until the Roblox OAuth link completes and unique once
// set. Session is zero after logout.
type Identity struct {
	DiscordID string
	RobloxID  *string
	Session   session.Credential
	Provider  oauth.TokenPair
}

// Linked reports whether a Roblox account is attached.
func (i *Identity) Linked() bool {
	return i.RobloxID != nil && *i.RobloxID != ""
}

// Profile is the combined view returned to the dashboard.
type Profile struct {
	Discord DiscordProfile `json:"discord"`
	Roblox  *RobloxProfile `json:"roblox,omitempty"`
}

// DiscordProfile is the Discord half of a profile.
type DiscordProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// RobloxProfile is the Roblox half of a profile, present once linked.
type RobloxProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayname"`
	Avatar      string `json:"avatar"`
}
