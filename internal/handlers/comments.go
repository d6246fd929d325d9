// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/storage"
	"inkpost/internal/store"
)

// Comments groups the comment handlers.
type Comments struct {
	comments *store.CommentStore
	posts    *store.PostStore
	disks    *storage.Disks
}

// NewComments creates a new Comments handler group.
func NewComments(comments *store.CommentStore, posts *store.PostStore, disks *storage.Disks) *Comments {
	return &Comments{comments: comments, posts: posts, disks: disks}
}

// visiblePost loads the post named by the URL, answering 404 when it is
// missing or hidden from the caller.
func (h *Comments) visiblePost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id, ok := uuidParam(w, r, "post", "Post")
	if !ok {
		return nil, false
	}
	p, err := h.posts.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find post failed", err, "post_id", id)
		return nil, false
	}
	if p == nil || !canView(middleware.UserFromCtx(r.Context()), p) {
		notFound(w, "Post")
		return nil, false
	}
	return p, true
}

// List returns the comment thread of a post. The public sees approved
// comments; staff see everything or filter with ?status=.
func (h *Comments) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.visiblePost(w, r)
	if !ok {
		return
	}

	approved := models.CommentApproved
	status := &approved
	if user := middleware.UserFromCtx(r.Context()); user != nil && user.IsStaff() {
		status = nil
		if s := r.URL.Query().Get("status"); s != "" {
			st := models.CommentStatus(s)
			if !st.Valid() {
				writeValidation(w, fieldErrors{"status": {"Status must be pending, approved or rejected."}})
				return
			}
			status = &st
		}
	}

	thread, err := h.comments.ListByPost(r.Context(), p.ID, status)
	if err != nil {
		serverError(w, "list comments failed", err, "post_id", p.ID)
		return
	}
	writeData(w, http.StatusOK, thread)
}

// Create adds a comment to a post. Every new comment waits for moderation.
func (h *Comments) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.visiblePost(w, r)
	if !ok {
		return
	}
	if !p.IsPublished() {
		writeError(w, http.StatusConflict, "Comments are closed for this post.")
		return
	}

	user := middleware.UserFromCtx(r.Context())
	var in commentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(user == nil); errs.any() {
		writeValidation(w, errs)
		return
	}

	c := &models.Comment{
		PostID:  p.ID,
		Content: strings.TrimSpace(in.Content),
		Status:  models.CommentPending,
		Metadata: models.Metadata{
			"ip":         middleware.ClientIP(r),
			"user_agent": r.UserAgent(),
		},
	}
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := uuid.Parse(*in.ParentID)
		if err != nil {
			writeValidation(w, fieldErrors{"parent_id": {"The selected parent comment is invalid."}})
			return
		}
		c.ParentID = &parent
	}

	// Authenticated comments keep a snapshot of the author so they remain
	// attributable after the account is removed.
	if user != nil {
		c.UserID = &user.ID
		c.AuthorName = &user.Name
		c.AuthorEmail = &user.Email
	} else {
		name := strings.TrimSpace(in.AuthorName)
		email := strings.ToLower(strings.TrimSpace(in.AuthorEmail))
		c.AuthorName = &name
		c.AuthorEmail = &email
	}

	created, err := h.comments.Create(r.Context(), c)
	if errors.Is(err, store.ErrParentMismatch) {
		writeValidation(w, fieldErrors{"parent_id": {"The parent comment does not belong to this post."}})
		return
	}
	if err != nil {
		serverError(w, "create comment failed", err, "post_id", p.ID)
		return
	}

	slog.Info("comment created", "comment_id", created.ID, "post_id", p.ID, "guest", created.IsGuest())
	writeData(w, http.StatusCreated, created)
}

// Update moderates a comment: its status, its content, or both.
func (h *Comments) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "comment", "Comment")
	if !ok {
		return
	}
	var in commentUpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}

	var status *models.CommentStatus
	if in.Status != nil {
		s := models.CommentStatus(*in.Status)
		status = &s
	}
	var content *string
	if in.Content != nil {
		c := strings.TrimSpace(*in.Content)
		content = &c
	}

	updated, err := h.comments.Update(r.Context(), id, status, content)
	if err != nil {
		serverError(w, "update comment failed", err, "comment_id", id)
		return
	}
	if updated == nil {
		notFound(w, "Comment")
		return
	}
	updated.Replies = []models.Comment{}

	slog.Info("comment moderated", "comment_id", id, "status", updated.Status,
		"moderator_id", middleware.UserFromCtx(r.Context()).ID)
	writeData(w, http.StatusOK, updated)
}

// Delete removes a comment and its replies, with their media.
func (h *Comments) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "comment", "Comment")
	if !ok {
		return
	}
	existing, err := h.comments.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find comment failed", err, "comment_id", id)
		return
	}
	if existing == nil {
		notFound(w, "Comment")
		return
	}

	removed, err := h.comments.Delete(r.Context(), id)
	if err != nil {
		serverError(w, "delete comment failed", err, "comment_id", id)
		return
	}
	if err := h.disks.Remove(r.Context(), removed); err != nil {
		slog.Warn("failed to delete media blobs", "comment_id", id, "error", err)
	}

	slog.Info("comment deleted", "comment_id", id, "media", len(removed))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted."})
}

// Like increments the like counter of an approved comment.
func (h *Comments) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "comment", "Comment")
	if !ok {
		return
	}
	c, err := h.comments.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find comment failed", err, "comment_id", id)
		return
	}
	user := middleware.UserFromCtx(r.Context())
	if c == nil || (c.Status != models.CommentApproved && (user == nil || !user.IsStaff())) {
		notFound(w, "Comment")
		return
	}

	likes, found, err := h.comments.Like(r.Context(), id)
	if err != nil {
		serverError(w, "like comment failed", err, "comment_id", id)
		return
	}
	if !found {
		notFound(w, "Comment")
		return
	}
	writeData(w, http.StatusOK, counterResponse{Likes: likes})
}
