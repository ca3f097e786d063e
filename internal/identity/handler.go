package identity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rolelink/rolelink/internal/platform/httpx"
	"github.com/rolelink/rolelink/internal/roblox"
	"github.com/rolelink/rolelink/internal/session"
	"github.com/rolelink/rolelink/internal/shared"
)

// RobloxUsers resolves account info for a linked Roblox id.
type RobloxUsers interface {
	User(ctx context.Context, robloxID string) (roblox.UserInfo, error)
}

// Handler wires the auth endpoints: login or session resume, Roblox
// linking, unlink, and logout.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	robloxUsers RobloxUsers
	cookieTTL   time.Duration
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, robloxUsers RobloxUsers, cookieTTL time.Duration) *Handler {
	if cookieTTL <= 0 {
		cookieTTL = session.DefaultCookieTTL
	}
	return &Handler{
		logger:      logger,
		service:     service,
		robloxUsers: robloxUsers,
		cookieTTL:   cookieTTL,
		validator:   validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/user", h.handleUser)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Post("/roblox", h.handleLinkRoblox)
		r.Post("/unlink", h.handleUnlink)
	})
}

// Authenticate verifies the session cookie, stores the session on the
// request context, and writes the rotated cookie back when the opaque
// pair was re-minted.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.service.Authenticate(r.Context(), session.ReadCookie(r))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if sess.Rotated != nil {
			session.WriteCookie(w, *sess.Rotated, h.cookieTTL)
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

type userRequest struct {
	Code string `json:"code"`
}

// handleUser is the single entry point for the dashboard: with a code in
// the body it runs the OAuth exchange and mints a session, without one it
// resumes the session carried by the cookie. Either way it answers with
// the combined profile.
func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
			return
		}
	}

	if req.Code != "" {
		h.handleLogin(w, r, req.Code)
		return
	}

	sess, err := h.service.Authenticate(r.Context(), session.ReadCookie(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if sess.Rotated != nil {
		session.WriteCookie(w, *sess.Rotated, h.cookieTTL)
	}

	profile, err := h.buildProfile(r.Context(), sess.Identity)
	if err != nil {
		h.logger.Error("load profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, code string) {
	ident, discordProfile, err := h.service.Login(r.Context(), code)
	if err != nil {
		h.logger.Warn("login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	session.WriteCookie(w, ident.Session, h.cookieTTL)

	profile := Profile{
		Discord: DiscordProfile{
			ID:       discordProfile.ID,
			Username: discordProfile.Username,
			Avatar:   discordProfile.Avatar,
		},
	}
	if robloxHalf := h.robloxHalf(r.Context(), ident); robloxHalf != nil {
		profile.Roblox = robloxHalf
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleLinkRoblox(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "code is required")
		return
	}

	robloxProfile, err := h.service.LinkRoblox(r.Context(), sess.Identity, req.Code)
	if err != nil {
		h.logger.Warn("link roblox", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, robloxProfile)
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.Unlink(r.Context(), sess.Identity); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout clears the stored pair and expires the cookie. It never
// fails from the client's point of view.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), session.ReadCookie(r)); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	session.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) buildProfile(ctx context.Context, ident *Identity) (Profile, error) {
	discordProfile, err := h.service.DiscordProfile(ctx, ident)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{
		Discord: DiscordProfile{
			ID:       discordProfile.ID,
			Username: discordProfile.Username,
			Avatar:   discordProfile.Avatar,
		},
	}
	profile.Roblox = h.robloxHalf(ctx, ident)
	return profile, nil
}

// robloxHalf loads the linked Roblox account, best effort: a lookup
// failure degrades to a Discord-only profile rather than failing the
// request.
func (h *Handler) robloxHalf(ctx context.Context, ident *Identity) *RobloxProfile {
	if !ident.Linked() || h.robloxUsers == nil {
		return nil
	}
	user, err := h.robloxUsers.User(ctx, *ident.RobloxID)
	if err != nil {
		h.logger.Warn("roblox user lookup",
			slog.String("roblox_id", *ident.RobloxID),
			slog.Any("error", err))
		return nil
	}
	return &RobloxProfile{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Avatar:      user.Thumbnail,
	}
}
