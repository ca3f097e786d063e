// Package session implements the opaque session token lifecycle: minting,
// verification, and lazy rotation over an expired token/refresh-token pair.
// The verifier decides; persistence of the decision belongs to the caller.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// DefaultTTL is the server-side session lifetime. Deliberately much shorter
// than the cookie lifetime so rotation-on-read happens while the cookie
// still exists.
const DefaultTTL = 10 * time.Minute

// Credential is a server-issued opaque token pair with an absolute expiry,
// unrelated to any OAuth provider token.
type Credential struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Zero reports whether the credential is absent (logged out).
func (c Credential) Zero() bool {
	return c.Token == "" || c.RefreshToken == ""
}

// ExpiredAt reports whether the credential has expired at the given instant.
func (c Credential) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt < now.Unix()
}

// NewCredential mints a fresh random token pair expiring ttl from now.
func NewCredential(now time.Time, ttl time.Duration) Credential {
	return Credential{
		Token:        randomToken(),
		RefreshToken: randomToken(),
		ExpiresAt:    now.Add(ttl).Unix(),
	}
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("session: rand.Read: " + err.Error())
	}
	return hex.EncodeToString(b)
}
