package bindings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rolelink/rolelink/internal/guilds"
	"github.com/rolelink/rolelink/internal/identity"
	"github.com/rolelink/rolelink/internal/platform/httpx"
	"github.com/rolelink/rolelink/internal/shared"
)

// Handler wires the binding rule endpoints. Both directions are gated on
// the caller holding Administrator in the target server.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory guilds.Directory
	resync    func(ctx context.Context, serverID string) error
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directory guilds.Directory) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		directory: directory,
	}
}

// WithResync installs an enqueue hook invoked after a successful save, so
// member roles converge on the new rules without waiting for the next
// scheduled sweep.
func (h *Handler) WithResync(enqueue func(ctx context.Context, serverID string) error) *Handler {
	h.resync = enqueue
	return h
}

// MountRoutes registers binding routes on the provided router. The caller
// wraps them in the session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{serverID}", h.handleList)
	r.Post("/{serverID}", h.handleSave)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	if err := h.requireAdmin(r.Context(), serverID); err != nil {
		httpx.RespondError(w, err)
		return
	}

	rules, err := h.service.List(r.Context(), serverID)
	if err != nil {
		h.logger.Error("list bindings", slog.String("server_id", serverID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if rules == nil {
		rules = []Rule{}
	}
	httpx.JSON(w, http.StatusOK, rules)
}

type saveResponse struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")
	if err := h.requireAdmin(r.Context(), serverID); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var batch MutationBatch
	if err := httpx.DecodeJSON(r, &batch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}

	ids, err := h.service.SaveBatch(r.Context(), serverID, batch)
	if err != nil {
		h.logger.Warn("save bindings", slog.String("server_id", serverID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	if h.resync != nil {
		// Best effort: the scheduled sweep covers a lost enqueue.
		if err := h.resync(r.Context(), serverID); err != nil {
			h.logger.Warn("enqueue resync", slog.String("server_id", serverID), slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusOK, saveResponse{IDs: ids})
}

// requireAdmin checks the authenticated caller holds Administrator in the
// server. A caller who is not even a member gets the same Forbidden as a
// non-admin member.
func (h *Handler) requireAdmin(ctx context.Context, serverID string) error {
	sess, ok := identity.SessionFromContext(ctx)
	if !ok {
		return shared.ErrUnauthenticated
	}
	member, err := h.directory.Member(ctx, serverID, sess.Identity.DiscordID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrForbidden
		}
		return err
	}
	if !member.Admin() {
		return shared.ErrForbidden
	}
	return nil
}
