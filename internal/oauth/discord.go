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

const discordAPIBase = "https://discord.com/api"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:   discordAPIBase + "/oauth2/authorize",
	TokenURL:  discordAPIBase + "/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Discord implements Client against the Discord OAuth2 API.
type Discord struct {
	config *oauth2.Config
	http   *http.Client
	base   string
}

// NewDiscord constructs a Discord OAuth client.
func NewDiscord(clientID, clientSecret, redirectURI string) *Discord {
	return &Discord{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint:     discordEndpoint,
		},
		http: &http.Client{Timeout: 10 * time.Second},
		base: discordAPIBase,
	}
}

// WithBaseURL points the client at a test server.
func (d *Discord) WithBaseURL(base string) *Discord {
	d.base = base
	d.config.Endpoint = oauth2.Endpoint{
		AuthURL:   base + "/oauth2/authorize",
		TokenURL:  base + "/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return d
}

// ExchangeCode trades an authorization code for a token pair.
func (d *Discord) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.http)
	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: discord code exchange: %v", shared.ErrProvider, err)
	}
	return fromToken(token), nil
}

// Refresh trades the refresh token for a fresh pair.
func (d *Discord) Refresh(ctx context.Context, pair TokenPair) (TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.http)
	source := d.config.TokenSource(ctx, &oauth2.Token{RefreshToken: pair.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: discord token refresh: %v", shared.ErrProvider, err)
	}
	return fromToken(token), nil
}

// Profile fetches /users/@me for the access token.
func (d *Discord) Profile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+"/users/@me", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := d.http.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: discord profile: %v", shared.ErrProvider, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: discord profile: status %d", shared.ErrProvider, res.StatusCode)
	}

	var payload struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Avatar     string `json:"avatar"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Profile{}, fmt.Errorf("%w: discord profile decode: %v", shared.ErrProvider, err)
	}
	return Profile{
		ID:          payload.ID,
		Username:    payload.Username,
		DisplayName: payload.GlobalName,
		Avatar:      payload.Avatar,
	}, nil
}

func fromToken(token *oauth2.Token) TokenPair {
	return TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
}
