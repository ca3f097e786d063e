package session

import (
	"context"
	"errors"
	"time"

	"github.com/rolelink/rolelink/internal/shared"
)

// Lookup resolves the stored credential for a presented session token.
// Implementations must return shared.ErrNotFound when zero or more than one
// record matches the token.
type Lookup interface {
	SessionByToken(ctx context.Context, token string) (Credential, error)
}

// Result is the verifier's decision. When NeedsRotation is set the caller
// must persist Credential (compare-and-swap on the old refresh token) and
// reset the client cookie before responding, or the client is effectively
// logged out on its next request.
type Result struct {
	Verified      bool
	NeedsRotation bool
	Credential    Credential
}

// Verifier validates and lazily rotates opaque session credentials.
type Verifier struct {
	lookup Lookup
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier constructs a Verifier. A zero ttl falls back to DefaultTTL.
func NewVerifier(lookup Lookup, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Verifier{lookup: lookup, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify checks the presented cookie pair against the stored credential.
// When stored is nil the credential is loaded through the Lookup. The call
// is idempotent for an unexpired session: the stored pair comes back
// unchanged. For an expired session with a matching refresh token a fresh
// pair is minted and returned with NeedsRotation set; on refresh mismatch
// the request is simply unauthenticated.
func (v *Verifier) Verify(ctx context.Context, cookie Cookie, stored *Credential) (Result, error) {
	if cookie.Token == "" || cookie.RefreshToken == "" {
		return Result{}, nil
	}

	var cred Credential
	if stored != nil {
		cred = *stored
	} else {
		found, err := v.lookup.SessionByToken(ctx, cookie.Token)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Result{}, nil
			}
			return Result{}, err
		}
		cred = found
	}

	// A cleared credential means the identity logged out.
	if cred.Zero() {
		return Result{}, nil
	}

	now := v.now()
	if !cred.ExpiredAt(now) {
		return Result{Verified: true, Credential: cred}, nil
	}

	if cred.RefreshToken != cookie.RefreshToken {
		return Result{}, nil
	}

	return Result{
		Verified:      true,
		NeedsRotation: true,
		Credential:    NewCredential(now, v.ttl),
	}, nil
}
