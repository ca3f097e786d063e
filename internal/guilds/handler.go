package guilds

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/rolelink/rolelink/internal/identity"
	"github.com/rolelink/rolelink/internal/platform/httpx"
	"github.com/rolelink/rolelink/internal/shared"
)

// ProviderTokens yields a live upstream access token for an identity.
type ProviderTokens interface {
	FreshProviderToken(ctx context.Context, ident *identity.Identity) (string, error)
}

// Handler serves the server directory endpoints behind the dashboard:
// the servers the caller can configure, and the roles the bot can manage
// within one of them.
type Handler struct {
	logger    *slog.Logger
	directory Directory
	tokens    ProviderTokens
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, directory Directory, tokens ProviderTokens) *Handler {
	return &Handler{
		logger:    logger,
		directory: directory,
		tokens:    tokens,
	}
}

// MountRoutes registers directory routes on the provided router. The
// caller wraps them in the session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/servers", h.handleServers)
	r.Get("/roles/{serverID}", h.handleRoles)
}

// handleServers lists the guilds the caller administers that the bot is
// also installed in. Both listings come live from Discord.
func (h *Handler) handleServers(w http.ResponseWriter, r *http.Request) {
	sess, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	token, err := h.tokens.FreshProviderToken(r.Context(), sess.Identity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userGuilds, err := h.directory.UserGuilds(r.Context(), token)
	if err != nil {
		h.logger.Error("list user guilds", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	botGuilds, err := h.directory.Guilds(r.Context())
	if err != nil {
		h.logger.Error("list bot guilds", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	installed := make(map[string]Guild, len(botGuilds))
	for _, g := range botGuilds {
		installed[g.ID] = g
	}

	servers := make([]Guild, 0)
	for _, g := range userGuilds {
		if !g.Admin() {
			continue
		}
		bot, ok := installed[g.ID]
		if !ok {
			continue
		}
		// The bot listing carries the member count with_counts fills in.
		g.MemberCount = bot.MemberCount
		servers = append(servers, g)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })

	httpx.JSON(w, http.StatusOK, servers)
}

// handleRoles lists the roles of a server the bot could assign, for the
// binding editor's role picker.
func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	sess, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	serverID := chi.URLParam(r, "serverID")

	member, err := h.directory.Member(r.Context(), serverID, sess.Identity.DiscordID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	if !member.Admin() {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	all, err := h.directory.Roles(r.Context(), serverID)
	if err != nil {
		h.logger.Error("list roles", slog.String("server_id", serverID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	bot, err := h.directory.BotMember(r.Context(), serverID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, ManageableRoles(all, bot, serverID))
}
