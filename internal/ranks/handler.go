package ranks

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rolelink/rolelink/internal/identity"
	"github.com/rolelink/rolelink/internal/platform/httpx"
	"github.com/rolelink/rolelink/internal/shared"
)

// Handler exposes the rank commands. The setter is always the session
// user; authorization against the target is the service's policy check.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers rank routes on the provided router. The caller
// wraps them in the session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{groupName}", h.handleSetRank)
	r.Post("/{groupName}/exile", h.handleExile)
}

func (h *Handler) handleSetRank(w http.ResponseWriter, r *http.Request) {
	sess, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	groupName := chi.URLParam(r, "groupName")

	var req struct {
		TargetDiscordID string `json:"targetDiscordId" validate:"required"`
		Rank            int    `json:"rank" validate:"min=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "targetDiscordId is required")
		return
	}

	if err := h.service.SetRank(r.Context(), sess.Identity.DiscordID, req.TargetDiscordID, groupName, req.Rank); err != nil {
		h.logger.Warn("set rank",
			slog.String("group", groupName),
			slog.String("target", req.TargetDiscordID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExile(w http.ResponseWriter, r *http.Request) {
	sess, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	groupName := chi.URLParam(r, "groupName")

	var req struct {
		TargetDiscordID string `json:"targetDiscordId" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "targetDiscordId is required")
		return
	}

	if err := h.service.Exile(r.Context(), sess.Identity.DiscordID, req.TargetDiscordID, groupName); err != nil {
		h.logger.Warn("exile",
			slog.String("group", groupName),
			slog.String("target", req.TargetDiscordID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
