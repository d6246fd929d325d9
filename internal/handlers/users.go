// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/session"
	"inkpost/internal/storage"
	"inkpost/internal/store"
)

// Users groups the admin user-management handlers.
type Users struct {
	users  *store.UserStore
	ledger *session.Store
	disks  *storage.Disks
}

// NewUsers creates a new Users handler group.
func NewUsers(users *store.UserStore, ledger *session.Store, disks *storage.Disks) *Users {
	return &Users{users: users, ledger: ledger, disks: disks}
}

// target loads the user named by the URL. Admins may not act on their own
// account here, so they cannot lock themselves out.
func (h *Users) target(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, ok := uuidParam(w, r, "user", "User")
	if !ok {
		return nil, false
	}
	if id == middleware.UserFromCtx(r.Context()).ID {
		writeError(w, http.StatusConflict, "You cannot change your own account here.")
		return nil, false
	}
	u, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find user failed", err, "user_id", id)
		return nil, false
	}
	if u == nil {
		notFound(w, "User")
		return nil, false
	}
	return u, true
}

// List returns one page of users.
func (h *Users) List(w http.ResponseWriter, r *http.Request) {
	q := models.ParsePageQuery(r.URL.Query().Get("page"), r.URL.Query().Get("per_page"), models.DefaultPerPage)
	items, total, err := h.users.List(r.Context(), q)
	if err != nil {
		serverError(w, "list users failed", err)
		return
	}
	writeJSON(w, http.StatusOK, models.Paginated[models.User]{Data: items, Meta: models.NewPageMeta(q, total)})
}

type roleInput struct {
	Role string `json:"role"`
}

// SetRole changes a user's role. Live credentials carry the old role, so
// they are revoked.
func (h *Users) SetRole(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	var in roleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		writeValidation(w, fieldErrors{"role": {"Role must be admin, moderator or user."}})
		return
	}

	if err := h.users.SetRole(r.Context(), u.ID, role); err != nil {
		serverError(w, "set role failed", err, "user_id", u.ID)
		return
	}
	h.revokeAll(r, u.ID)
	u.Role = role

	slog.Info("user role changed", "user_id", u.ID, "role", role,
		"admin_id", middleware.UserFromCtx(r.Context()).ID)
	writeData(w, http.StatusOK, u)
}

// ResetTwoFA disables two-factor login for a user who lost their device.
func (h *Users) ResetTwoFA(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.users.ResetTOTP(r.Context(), u.ID); err != nil {
		serverError(w, "reset 2fa failed", err, "user_id", u.ID)
		return
	}
	u.TOTPEnabled = false
	u.TOTPSecret = nil

	slog.Info("2fa reset by admin", "user_id", u.ID,
		"admin_id", middleware.UserFromCtx(r.Context()).ID)
	writeData(w, http.StatusOK, u)
}

// Delete removes a user with their posts. Their comments elsewhere stay.
func (h *Users) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	removed, err := h.users.Delete(r.Context(), u.ID)
	if err != nil {
		serverError(w, "delete user failed", err, "user_id", u.ID)
		return
	}
	h.revokeAll(r, u.ID)
	if err := h.disks.Remove(r.Context(), removed); err != nil {
		slog.Warn("failed to delete media blobs", "user_id", u.ID, "error", err)
	}

	slog.Info("user deleted", "user_id", u.ID, "media", len(removed),
		"admin_id", middleware.UserFromCtx(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted."})
}

func (h *Users) revokeAll(r *http.Request, id uuid.UUID) {
	if n, err := h.ledger.RevokeUser(r.Context(), id, ""); err != nil {
		slog.Warn("revoke credentials failed", "user_id", id, "error", err)
	} else if n > 0 {
		slog.Info("credentials revoked", "user_id", id, "count", n)
	}
}
