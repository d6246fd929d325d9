// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/store"
)

// Dashboard groups the dashboard handlers.
type Dashboard struct {
	posts    *store.PostStore
	comments *store.CommentStore
	users    *store.UserStore
	media    *store.MediaStore
}

// NewDashboard creates a new Dashboard handler group.
func NewDashboard(posts *store.PostStore, comments *store.CommentStore, users *store.UserStore, media *store.MediaStore) *Dashboard {
	return &Dashboard{posts: posts, comments: comments, users: users, media: media}
}

type dashboardStats struct {
	Posts    *store.PostStats             `json:"posts"`
	Comments map[models.CommentStatus]int `json:"comments"`
	Users    map[models.Role]int          `json:"users"`
	Media    int                          `json:"media"`
}

// Stats returns site-wide counters for staff.
func (h *Dashboard) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		st  dashboardStats
		err error
	)
	if st.Posts, err = h.posts.Stats(ctx); err != nil {
		serverError(w, "post stats failed", err)
		return
	}
	if st.Comments, err = h.comments.CountByStatus(ctx); err != nil {
		serverError(w, "comment stats failed", err)
		return
	}
	if st.Users, err = h.users.CountByRole(ctx); err != nil {
		serverError(w, "user stats failed", err)
		return
	}
	if st.Media, err = h.media.Count(ctx); err != nil {
		serverError(w, "media stats failed", err)
		return
	}
	writeData(w, http.StatusOK, st)
}

// MyPosts returns one page of the principal's own posts in any status.
func (h *Dashboard) MyPosts(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	q := r.URL.Query()
	f := models.PostFilter{AuthorID: &user.ID, Search: q.Get("search")}
	if s := q.Get("status"); s != "" {
		status := models.PostStatus(s)
		if !status.Valid() {
			writeValidation(w, fieldErrors{"status": {"Status must be draft, published or archived."}})
			return
		}
		f.Status = &status
	}
	page := models.ParsePageQuery(q.Get("page"), q.Get("per_page"), models.DefaultPerPage)

	items, total, err := h.posts.List(r.Context(), f, page)
	if err != nil {
		serverError(w, "list own posts failed", err, "user_id", user.ID)
		return
	}
	writeJSON(w, http.StatusOK, models.Paginated[models.Post]{Data: items, Meta: models.NewPageMeta(page, total)})
}
