package session

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// CookieName is the session cookie identifier.
const CookieName = "session"

// DefaultCookieTTL keeps the cookie alive for about a year, far beyond the
// server-side session TTL, so an expired session can still be rotated on
// the next read instead of silently vanishing.
const DefaultCookieTTL = 365 * 24 * time.Hour

// Cookie is the client-side session cookie payload.
type Cookie struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// ReadCookie extracts and decodes the session cookie from the request.
// A missing or malformed cookie yields a zero Cookie, never an error:
// the verifier treats it as unauthenticated.
func ReadCookie(r *http.Request) Cookie {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Cookie{}
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return Cookie{}
	}
	var cookie Cookie
	if err := json.Unmarshal([]byte(raw), &cookie); err != nil {
		return Cookie{}
	}
	return cookie
}

// WriteCookie sets the session cookie for the rotated or newly minted pair.
// SameSite=None because the dashboard frontend lives on a different origin.
func WriteCookie(w http.ResponseWriter, cred Credential, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	payload, _ := json.Marshal(Cookie{Token: cred.Token, RefreshToken: cred.RefreshToken})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(string(payload)),
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
