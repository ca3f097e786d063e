// Package oauth wraps the upstream OAuth providers (Discord, Roblox) behind
// a single client contract: code exchange, token refresh, and profile reads.
// Provider tokens are long-lived upstream credentials, independent of the
// server's own opaque session tokens.
package oauth

import (
	"context"
	"time"
)

// TokenPair is an upstream access/refresh token pair with absolute expiry
// in epoch seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Zero reports whether the pair is absent.
func (p TokenPair) Zero() bool {
	return p.AccessToken == "" || p.RefreshToken == ""
}

// ExpiredAt reports whether the pair has expired at the given instant.
func (p TokenPair) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt < now.Unix()
}

// Profile is the subset of an upstream account the service cares about.
type Profile struct {
	ID          string
	Username    string
	DisplayName string
	Avatar      string
}

// Client is the per-provider OAuth contract consumed by the identity layer.
type Client interface {
	// ExchangeCode trades an authorization code for a token pair.
	ExchangeCode(ctx context.Context, code string) (TokenPair, error)
	// Refresh trades the refresh token for a fresh pair.
	Refresh(ctx context.Context, pair TokenPair) (TokenPair, error)
	// Profile fetches the account profile for an access token.
	Profile(ctx context.Context, accessToken string) (Profile, error)
}

// RefreshIfExpired refreshes the pair only once its expiry has passed,
// keeping provider round-trips off the hot path. The bool reports whether
// the caller must persist the returned pair.
func RefreshIfExpired(ctx context.Context, client Client, pair TokenPair, now time.Time) (TokenPair, bool, error) {
	if !pair.ExpiredAt(now) {
		return pair, false, nil
	}
	refreshed, err := client.Refresh(ctx, pair)
	if err != nil {
		return TokenPair{}, false, err
	}
	return refreshed, true, nil
}
