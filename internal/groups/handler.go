package groups

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rolelink/rolelink/internal/platform/httpx"
)

// GroupView is the catalog entry the dashboard renders.
type GroupView struct {
	Name      string            `json:"name"`
	Icon      string            `json:"icon"`
	Parent    string            `json:"parent,omitempty"`
	IsPublic  bool              `json:"isPublic"`
	Classes   Classes           `json:"classes"`
	Ranks     map[string]string `json:"ranks"`
	RankCount int               `json:"rankCount"`
}

// Handler serves the group catalog.
type Handler struct {
	logger  *slog.Logger
	catalog *Catalog
	icons   *IconResolver
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog, icons *IconResolver) *Handler {
	return &Handler{
		logger:  logger,
		catalog: catalog,
		icons:   icons,
	}
}

// MountRoutes registers catalog routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
}

// handleList returns the public groups with resolved icon URLs. Hidden
// groups never leave the server.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views := make([]GroupView, 0)
	for _, name := range h.catalog.Names() {
		group, ok := h.catalog.Lookup(name)
		if !ok || group.IsHidden {
			continue
		}

		icon := group.Icon
		if h.icons != nil {
			resolved, err := h.icons.Resolve(r.Context(), name)
			if err != nil {
				h.logger.Warn("resolve group icon", slog.String("group", name), slog.Any("error", err))
			} else if resolved != "" {
				icon = resolved
			}
		}

		parent := ""
		if group.Parent != nil {
			parent = *group.Parent
		}

		views = append(views, GroupView{
			Name:      group.Name,
			Icon:      icon,
			Parent:    parent,
			IsPublic:  group.IsPublic,
			Classes:   group.Classes,
			Ranks:     group.Ranks,
			RankCount: group.RankCount(),
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}
