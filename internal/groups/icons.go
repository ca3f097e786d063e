package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rolelink/rolelink/internal/platform/cache"
	"github.com/rolelink/rolelink/internal/shared"
)

const thumbnailsBase = "https://thumbnails.roblox.com"

var assetIDPattern = regexp.MustCompile(`\d+`)

// IconResolver resolves catalog icon asset ids to CDN image URLs through
// the Roblox thumbnails API, memoised in an injected bounded-TTL cache.
// Stale URLs are tolerated; the refresh job repopulates them periodically.
type IconResolver struct {
	catalog *Catalog
	cache   *cache.Lookup
	http    *http.Client
	apiKey  string
	base    string
	logger  *slog.Logger
}

// NewIconResolver constructs an IconResolver.
func NewIconResolver(catalog *Catalog, lookup *cache.Lookup, apiKey string, logger *slog.Logger) *IconResolver {
	return &IconResolver{
		catalog: catalog,
		cache:   lookup,
		http:    &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		base:    thumbnailsBase,
		logger:  logger,
	}
}

// WithBaseURL points the resolver at a test server.
func (r *IconResolver) WithBaseURL(base string) *IconResolver {
	r.base = base
	return r
}

// Resolve returns the icon URL for a group, from cache when fresh.
func (r *IconResolver) Resolve(ctx context.Context, groupName string) (string, error) {
	group, ok := r.catalog.Lookup(groupName)
	if !ok {
		return "", fmt.Errorf("%w: group %q", shared.ErrNotFound, groupName)
	}
	if url, hit, err := r.cache.Get(ctx, groupName); err == nil && hit {
		return url, nil
	}
	urls, err := r.fetch(ctx, map[string]string{groupName: assetID(group.Icon)})
	if err != nil {
		return "", err
	}
	return urls[groupName], nil
}

// RefreshAll re-fetches every catalog icon in one batched thumbnails call.
// Invoked by the periodic icon refresh job.
func (r *IconResolver) RefreshAll(ctx context.Context) error {
	assets := make(map[string]string, len(r.catalog.Names()))
	for _, name := range r.catalog.Names() {
		group, _ := r.catalog.Lookup(name)
		assets[name] = assetID(group.Icon)
	}
	_, err := r.fetch(ctx, assets)
	return err
}

func (r *IconResolver) fetch(ctx context.Context, assets map[string]string) (map[string]string, error) {
	ids := make([]string, 0, len(assets))
	for _, id := range assets {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	url := fmt.Sprintf("%s/v1/assets/?assetIds=%s&size=150x150&format=Webp", r.base, strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if r.apiKey != "" {
		req.Header.Set("x-api-key", r.apiKey)
	}

	res, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: thumbnails: %v", shared.ErrProvider, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: thumbnails: status %d", shared.ErrProvider, res.StatusCode)
	}

	var payload struct {
		Data []struct {
			TargetID json.Number `json:"targetId"`
			ImageURL string      `json:"imageUrl"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: thumbnails decode: %v", shared.ErrProvider, err)
	}

	urls := make(map[string]string, len(assets))
	for _, item := range payload.Data {
		for name, id := range assets {
			if id != item.TargetID.String() {
				continue
			}
			urls[name] = item.ImageURL
			if err := r.cache.Set(ctx, name, item.ImageURL); err != nil && r.logger != nil {
				r.logger.Warn("icon cache set", slog.String("group", name), slog.Any("error", err))
			}
		}
	}
	return urls, nil
}

func assetID(icon string) string {
	return assetIDPattern.FindString(icon)
}
