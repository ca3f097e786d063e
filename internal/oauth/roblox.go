package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/rolelink/rolelink/internal/shared"
)

const robloxAPIBase = "https://apis.roblox.com"

var robloxEndpoint = oauth2.Endpoint{
	AuthURL:   "https://apis.roblox.com/oauth/v1/authorize",
	TokenURL:  "https://apis.roblox.com/oauth/v1/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Roblox implements Client against the Roblox Open Cloud OAuth API.
// Profile.ID carries the OIDC subject, which is the numeric Roblox user id.
type Roblox struct {
	config *oauth2.Config
	http   *http.Client
	base   string
}

// NewRoblox constructs a Roblox OAuth client.
func NewRoblox(clientID, clientSecret, redirectURI string) *Roblox {
	return &Roblox{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "profile"},
			Endpoint:     robloxEndpoint,
		},
		http: &http.Client{Timeout: 10 * time.Second},
		base: robloxAPIBase,
	}
}

// WithBaseURL points the client at a test server.
func (r *Roblox) WithBaseURL(base string) *Roblox {
	r.base = base
	r.config.Endpoint = oauth2.Endpoint{
		AuthURL:   base + "/oauth/v1/authorize",
		TokenURL:  base + "/oauth/v1/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return r
}

// ExchangeCode trades an authorization code for a token pair.
func (r *Roblox) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.http)
	token, err := r.config.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: roblox code exchange: %v", shared.ErrProvider, err)
	}
	return fromToken(token), nil
}

// Refresh trades the refresh token for a fresh pair.
func (r *Roblox) Refresh(ctx context.Context, pair TokenPair) (TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.http)
	source := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: pair.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: roblox token refresh: %v", shared.ErrProvider, err)
	}
	return fromToken(token), nil
}

// Profile fetches the OIDC userinfo document for the access token.
func (r *Roblox) Profile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/oauth/v1/userinfo", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := r.http.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: roblox userinfo: %v", shared.ErrProvider, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: roblox userinfo: status %d", shared.ErrProvider, res.StatusCode)
	}

	var payload struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Nickname          string `json:"nickname"`
		Picture           string `json:"picture"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Profile{}, fmt.Errorf("%w: roblox userinfo decode: %v", shared.ErrProvider, err)
	}
	return Profile{
		ID:          payload.Sub,
		Username:    payload.PreferredUsername,
		DisplayName: payload.Nickname,
		Avatar:      payload.Picture,
	}, nil
}
