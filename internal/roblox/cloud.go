// Package roblox is the Open Cloud collaborator: player data reads, rank
// writes, and user lookups against the Roblox cloud APIs. Rank state lives
// in a per-player datastore entry; when the player is in game the write
// goes through the experience's memory-store queue instead so the live
// server applies it.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rolelink/rolelink/internal/shared"
)

const cloudAPIBase = "https://apis.roblox.com"

// PlayerData is the datastore entry for one player: current rank per
// group, keyed by group name. Rank 0 / absent means not a member.
type PlayerData struct {
	Ranks map[string]int `json:"Ranks"`
}

// UserInfo is a Roblox account lookup result.
type UserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"name"`
	DisplayName string `json:"displayName"`
	Thumbnail   string `json:"thumbnail"`
}

// Client talks to the Roblox Open Cloud APIs for one universe.
type Client struct {
	http       *http.Client
	apiKey     string
	universeID string
	datastore  string
	base       string
}

// NewClient constructs a Client. datastore names the player datastore
// holding rank entries.
func NewClient(apiKey, universeID, datastore string) *Client {
	return &Client{
		http:       &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		universeID: universeID,
		datastore:  datastore,
		base:       cloudAPIBase,
	}
}

// WithBaseURL points the client at a test server.
func (c *Client) WithBaseURL(base string) *Client {
	c.base = base
	return c
}

// Ranks returns the player's current rank per group. A player with no
// datastore entry has no ranks. Implements the rank source consumed by
// the role syncer.
func (c *Client) Ranks(ctx context.Context, robloxID string) (map[string]int, error) {
	data, err := c.playerData(ctx, robloxID)
	if err != nil {
		return nil, err
	}
	if data == nil || data.Ranks == nil {
		return map[string]int{}, nil
	}
	return data.Ranks, nil
}

// SetRank writes the player's rank in a group. An in-game player gets the
// write queued to their server; otherwise the datastore entry is updated
// directly. Exile is a write of rank 0.
func (c *Client) SetRank(ctx context.Context, robloxID, group string, rank int) error {
	placeID, inGame, err := c.placeOf(ctx, robloxID)
	if err != nil {
		return err
	}
	if inGame {
		return c.queueRankAction(ctx, placeID, robloxID, group, rank)
	}

	data, err := c.playerData(ctx, robloxID)
	if err != nil {
		return err
	}
	if data == nil {
		data = &PlayerData{}
	}
	if data.Ranks == nil {
		data.Ranks = map[string]int{}
	}
	data.Ranks[group] = rank
	return c.writePlayerData(ctx, robloxID, data)
}

// User fetches account info plus a round avatar thumbnail.
func (c *Client) User(ctx context.Context, robloxID string) (UserInfo, error) {
	var user struct {
		ID          json.Number `json:"id"`
		Name        string      `json:"name"`
		DisplayName string      `json:"displayName"`
	}
	if err := c.get(ctx, "/cloud/v2/users/"+url.PathEscape(robloxID), &user); err != nil {
		return UserInfo{}, err
	}

	var thumb struct {
		Response struct {
			ImageURI string `json:"imageUri"`
		} `json:"response"`
	}
	path := fmt.Sprintf("/cloud/v2/users/%s:generateThumbnail?size=60&format=PNG&shape=ROUND", url.PathEscape(robloxID))
	if err := c.get(ctx, path, &thumb); err != nil {
		return UserInfo{}, err
	}

	return UserInfo{
		ID:          user.ID.String(),
		Username:    user.Name,
		DisplayName: user.DisplayName,
		Thumbnail:   thumb.Response.ImageURI,
	}, nil
}

// placeOf reports the place id of the server the player is connected to,
// via the Players memory-store sorted map the experience maintains.
func (c *Client) placeOf(ctx context.Context, robloxID string) (string, bool, error) {
	path := fmt.Sprintf("/cloud/v2/universes/%s/memory-store/sorted-maps/Players/items/%s", c.universeID, url.PathEscape(robloxID))
	var item struct {
		Value json.Number `json:"value"`
	}
	if err := c.get(ctx, path, &item); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if item.Value.String() == "" {
		return "", false, nil
	}
	return item.Value.String(), true, nil
}

func (c *Client) queueRankAction(ctx context.Context, placeID, robloxID, group string, rank int) error {
	path := fmt.Sprintf("/cloud/v2/universes/%s/memory-store/queues/PlayerActions_%s/items", c.universeID, placeID)
	payload := map[string]any{
		"action":     "SetRank",
		"userId":     robloxID,
		"group":      group,
		"targetRank": rank,
	}
	return c.post(ctx, path, payload, nil)
}

func (c *Client) playerData(ctx context.Context, robloxID string) (*PlayerData, error) {
	path := fmt.Sprintf("/cloud/v2/universes/%s/data-stores/%s/entries/%s", c.universeID, url.PathEscape(c.datastore), url.PathEscape(robloxID))
	var entry struct {
		Value PlayerData `json:"value"`
	}
	if err := c.get(ctx, path, &entry); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry.Value, nil
}

func (c *Client) writePlayerData(ctx context.Context, robloxID string, data *PlayerData) error {
	path := fmt.Sprintf("/cloud/v2/universes/%s/data-stores/%s/entries/%s", c.universeID, url.PathEscape(c.datastore), url.PathEscape(robloxID))
	return c.post(ctx, path, map[string]any{"value": data}, nil)
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) post(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: roblox cloud: %v", shared.ErrProvider, err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		return fmt.Errorf("%w: roblox cloud: status %d", shared.ErrProvider, res.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: roblox cloud decode: %v", shared.ErrProvider, err)
	}
	return nil
}
