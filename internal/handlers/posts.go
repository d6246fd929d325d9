// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpost/internal/cache"
	"inkpost/internal/markdown"
	"inkpost/internal/metrics"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/slug"
	"inkpost/internal/storage"
	"inkpost/internal/store"
)

const (
	// excerptLen is the length of an excerpt derived from the content.
	excerptLen = 200

	defaultFeaturedLimit = 3
	defaultRecentLimit   = 5
	maxListLimit         = 20

	// fallbackSlug is used when a title has no sluggable characters.
	fallbackSlug = "post"
)

// Posts groups the post handlers.
type Posts struct {
	posts      *store.PostStore
	categories *store.CategoryStore
	tags       *store.TagStore
	media      *store.MediaStore
	disks      *storage.Disks
	listings   *cache.ListingCache
	metrics    *metrics.Metrics
}

// NewPosts creates a new Posts handler group. A nil listings cache
// disables listing caching.
func NewPosts(posts *store.PostStore, categories *store.CategoryStore, tags *store.TagStore,
	media *store.MediaStore, disks *storage.Disks, listings *cache.ListingCache, m *metrics.Metrics) *Posts {
	return &Posts{
		posts:      posts,
		categories: categories,
		tags:       tags,
		media:      media,
		disks:      disks,
		listings:   listings,
		metrics:    m,
	}
}

// canEdit reports whether user may modify post: its author or staff.
func canEdit(user *models.User, post *models.Post) bool {
	if user == nil {
		return false
	}
	return user.IsStaff() || post.AuthorID == user.ID
}

// canView reports whether user may read post. Unpublished posts are only
// visible to those who may edit them.
func canView(user *models.User, post *models.Post) bool {
	return post.IsPublished() || canEdit(user, post)
}

// cached serves a listing through the listing cache. Staff bypass the
// cache because their listings include unpublished posts.
func (h *Posts) cached(w http.ResponseWriter, r *http.Request, route string, query url.Values, build func() (any, error)) {
	user := middleware.UserFromCtx(r.Context())
	useCache := h.listings != nil && (user == nil || !user.IsStaff())

	var (
		key  string
		gen  cache.Generation
		body []byte
		hit  bool
	)
	if useCache {
		key = cache.ListingKey(route, query)
		if body, gen, hit = h.listings.Get(r.Context(), key); hit {
			h.metrics.RecordCache(r.Context(), route, true)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(body)
			return
		}
		h.metrics.RecordCache(r.Context(), route, false)
	}

	v, err := build()
	if err != nil {
		serverError(w, "list posts failed", err, "route", route)
		return
	}
	body, err = json.Marshal(v)
	if err != nil {
		serverError(w, "encode listing failed", err, "route", route)
		return
	}
	body = append(body, '\n')
	if useCache {
		h.listings.Set(r.Context(), gen, key, body)
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// invalidate drops every cached listing after a post mutation.
func (h *Posts) invalidate(r *http.Request) {
	if h.listings != nil {
		h.listings.InvalidateAll(r.Context())
	}
}

// filterFromQuery builds the listing filter. Callers who are not staff
// only ever see published posts.
func filterFromQuery(r *http.Request, user *models.User) (models.PostFilter, fieldErrors) {
	q := r.URL.Query()
	f := models.PostFilter{Search: strings.TrimSpace(q.Get("search"))}
	errs := fieldErrors{}

	if c := strings.TrimSpace(q.Get("category")); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			f.CategoryID = &id
		} else {
			f.CategorySlug = c
		}
	}
	if t := strings.TrimSpace(q.Get("tag")); t != "" {
		// A name that slugs to nothing still filters, matching no post.
		f.TagSlug = slug.Generate(t)
		if f.TagSlug == "" {
			f.TagSlug = t
		}
	}

	if user != nil && user.IsStaff() {
		if s := q.Get("status"); s != "" {
			status := models.PostStatus(s)
			if !status.Valid() {
				errs.add("status", "Status must be draft, published or archived.")
			} else {
				f.Status = &status
			}
		}
	} else {
		published := models.PostStatusPublished
		f.Status = &published
	}
	return f, errs
}

// List returns one page of posts.
func (h *Posts) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	f, errs := filterFromQuery(r, user)
	if errs.any() {
		writeValidation(w, errs)
		return
	}
	q := models.ParsePageQuery(r.URL.Query().Get("page"), r.URL.Query().Get("per_page"), models.DefaultPerPage)

	h.cached(w, r, "posts", r.URL.Query(), func() (any, error) {
		items, total, err := h.posts.List(r.Context(), f, q)
		if err != nil {
			return nil, err
		}
		return models.Paginated[models.Post]{Data: items, Meta: models.NewPageMeta(q, total)}, nil
	})
}

// limitParam reads ?limit=, clamped to [1, maxListLimit].
func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		return def
	}
	return min(n, maxListLimit)
}

// Featured returns the most recent featured posts.
func (h *Posts) Featured(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, defaultFeaturedLimit)
	h.cached(w, r, "posts/featured", r.URL.Query(), func() (any, error) {
		items, err := h.posts.Featured(r.Context(), limit)
		return dataBody{Data: items}, err
	})
}

// Recent returns the most recently published posts.
func (h *Posts) Recent(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, defaultRecentLimit)
	h.cached(w, r, "posts/recent", r.URL.Query(), func() (any, error) {
		items, err := h.posts.Recent(r.Context(), limit)
		return dataBody{Data: items}, err
	})
}

// postDetail is a single post with its rendered body and attached media.
type postDetail struct {
	*models.Post
	Media []models.Media `json:"media"`
}

// detail renders the post body and loads its tags and media.
func (h *Posts) detail(r *http.Request, p *models.Post) (*postDetail, error) {
	html, err := markdown.ToHTML(p.Content)
	if err != nil {
		return nil, err
	}
	p.ContentHTML = html

	if p.Tags, err = h.tags.ForPost(r.Context(), p.ID); err != nil {
		return nil, err
	}

	media, err := h.media.ListByOwner(r.Context(), models.PostOwner(p.ID), "")
	if err != nil {
		return nil, err
	}
	for i := range media {
		media[i].URL = h.disks.URL(&media[i])
	}
	return &postDetail{Post: p, Media: media}, nil
}

// Show returns a post by ID or slug and counts the view.
func (h *Posts) Show(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.FindByIDOrSlug(r.Context(), chi.URLParam(r, "post"))
	if err != nil {
		serverError(w, "find post failed", err)
		return
	}
	if p == nil || !canView(middleware.UserFromCtx(r.Context()), p) {
		notFound(w, "Post")
		return
	}

	views, ok, err := h.posts.IncrementViews(r.Context(), p.ID)
	if err != nil {
		serverError(w, "increment views failed", err, "post_id", p.ID)
		return
	}
	if !ok {
		notFound(w, "Post")
		return
	}
	p.Views = views

	d, err := h.detail(r, p)
	if err != nil {
		serverError(w, "render post failed", err, "post_id", p.ID)
		return
	}
	writeData(w, http.StatusOK, d)
}

// apply copies a validated body onto p, resolving references. It returns
// field errors for references that do not exist.
func (h *Posts) apply(r *http.Request, p *models.Post, in *postInput, user *models.User) (fieldErrors, error) {
	errs := fieldErrors{}

	catID, err := uuid.Parse(in.CategoryID)
	if err != nil {
		errs.add("category_id", "The selected category is invalid.")
	} else {
		cat, err := h.categories.FindByID(r.Context(), catID)
		if err != nil {
			return nil, err
		}
		if cat == nil {
			errs.add("category_id", "The selected category is invalid.")
		}
	}

	var imageID *uuid.UUID
	if in.FeaturedImageID != nil && *in.FeaturedImageID != "" {
		id, err := uuid.Parse(*in.FeaturedImageID)
		if err != nil {
			errs.add("featured_image_id", "The selected image is invalid.")
		} else {
			m, err := h.media.FindByID(r.Context(), id)
			if err != nil {
				return nil, err
			}
			if m == nil || !m.IsImage() {
				errs.add("featured_image_id", "The selected image is invalid.")
			}
			imageID = &id
		}
	}
	if errs.any() {
		return errs, nil
	}

	p.Title = strings.TrimSpace(in.Title)
	p.Content = in.Content
	p.Excerpt = strings.TrimSpace(in.Excerpt)
	if p.Excerpt == "" {
		p.Excerpt = markdown.Excerpt(in.Content, excerptLen)
	}
	p.ReadTime = markdown.ReadTime(in.Content)
	p.CategoryID = catID
	p.FeaturedImageID = imageID
	p.MetaTitle = in.MetaTitle
	p.MetaDescription = in.MetaDescription
	p.MetaKeywords = models.StringList(in.MetaKeywords)
	if p.MetaKeywords == nil {
		p.MetaKeywords = models.StringList{}
	}
	if user.IsStaff() {
		p.Featured = in.Featured
	}

	status := models.PostStatus(in.Status)
	if status == "" {
		status = p.Status
	}
	if status == "" {
		status = models.PostStatusDraft
	}
	p.ApplyStatus(status, time.Now())
	return nil, nil
}

// Create stores a new post authored by the principal.
func (h *Posts) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	var in postInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}

	p := &models.Post{AuthorID: user.ID}
	errs, err := h.apply(r, p, &in, user)
	if err != nil {
		serverError(w, "resolve post references failed", err)
		return
	}
	if errs.any() {
		writeValidation(w, errs)
		return
	}

	explicit := in.Slug != ""
	p.Slug = in.Slug
	if !explicit {
		p.Slug = slug.Generate(p.Title)
		if p.Slug == "" {
			p.Slug = fallbackSlug
		}
	}

	created, err := h.posts.Create(r.Context(), p, explicit)
	if errors.Is(err, store.ErrSlugTaken) {
		writeValidation(w, fieldErrors{"slug": {"The slug has already been taken."}})
		return
	}
	if err != nil {
		serverError(w, "create post failed", err)
		return
	}
	if created.Tags, err = h.tags.SetForPost(r.Context(), created.ID, in.Tags); err != nil {
		serverError(w, "tag post failed", err, "post_id", created.ID)
		return
	}

	h.invalidate(r)
	slog.Info("post created", "post_id", created.ID, "user_id", user.ID)
	writeData(w, http.StatusCreated, created)
}

// loadEditable fetches the post named by the URL and checks that the
// principal may modify it. It writes the response itself on failure.
func (h *Posts) loadEditable(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id, ok := uuidParam(w, r, "post", "Post")
	if !ok {
		return nil, false
	}
	p, err := h.posts.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find post failed", err, "post_id", id)
		return nil, false
	}
	if p == nil {
		notFound(w, "Post")
		return nil, false
	}
	if !canEdit(middleware.UserFromCtx(r.Context()), p) {
		forbidden(w)
		return nil, false
	}
	return p, true
}

// Update replaces the editable fields of a post. The slug only changes
// when one is supplied explicitly.
func (h *Posts) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadEditable(w, r)
	if !ok {
		return
	}
	var in postInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}

	user := middleware.UserFromCtx(r.Context())
	errs, err := h.apply(r, p, &in, user)
	if err != nil {
		serverError(w, "resolve post references failed", err, "post_id", p.ID)
		return
	}
	if errs.any() {
		writeValidation(w, errs)
		return
	}
	if in.Slug != "" {
		p.Slug = in.Slug
	}

	updated, err := h.posts.Update(r.Context(), p)
	if errors.Is(err, store.ErrSlugTaken) {
		writeValidation(w, fieldErrors{"slug": {"The slug has already been taken."}})
		return
	}
	if err != nil {
		serverError(w, "update post failed", err, "post_id", p.ID)
		return
	}
	if updated == nil {
		notFound(w, "Post")
		return
	}
	// Omitted tags are left alone; an empty list clears them.
	if in.Tags != nil {
		updated.Tags, err = h.tags.SetForPost(r.Context(), p.ID, in.Tags)
	} else {
		updated.Tags, err = h.tags.ForPost(r.Context(), p.ID)
	}
	if err != nil {
		serverError(w, "tag post failed", err, "post_id", p.ID)
		return
	}

	h.invalidate(r)
	slog.Info("post updated", "post_id", p.ID, "user_id", user.ID)
	writeData(w, http.StatusOK, updated)
}

// Delete removes a post with its comments and media.
func (h *Posts) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadEditable(w, r)
	if !ok {
		return
	}

	removed, err := h.posts.Delete(r.Context(), p.ID)
	if err != nil {
		serverError(w, "delete post failed", err, "post_id", p.ID)
		return
	}
	if err := h.disks.Remove(r.Context(), removed); err != nil {
		slog.Warn("failed to delete media blobs", "post_id", p.ID, "error", err)
	}

	h.invalidate(r)
	slog.Info("post deleted", "post_id", p.ID, "media", len(removed))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted."})
}

type counterResponse struct {
	Likes int64 `json:"likes"`
}

// Like increments the like counter of a published post.
func (h *Posts) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "post", "Post")
	if !ok {
		return
	}
	p, err := h.posts.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find post failed", err, "post_id", id)
		return
	}
	if p == nil || !canView(middleware.UserFromCtx(r.Context()), p) {
		notFound(w, "Post")
		return
	}

	likes, found, err := h.posts.Like(r.Context(), id)
	if err != nil {
		serverError(w, "like post failed", err, "post_id", id)
		return
	}
	if !found {
		notFound(w, "Post")
		return
	}
	writeData(w, http.StatusOK, counterResponse{Likes: likes})
}

// ByCategory returns one page of posts in the category named by ID or
// slug.
func (h *Posts) ByCategory(w http.ResponseWriter, r *http.Request) {
	c, err := findCategory(r, h.categories, chi.URLParam(r, "category"))
	if err != nil {
		serverError(w, "find category failed", err)
		return
	}
	if c == nil {
		notFound(w, "Category")
		return
	}

	user := middleware.UserFromCtx(r.Context())
	f, errs := filterFromQuery(r, user)
	if errs.any() {
		writeValidation(w, errs)
		return
	}
	f.CategorySlug = ""
	f.CategoryID = &c.ID
	q := models.ParsePageQuery(r.URL.Query().Get("page"), r.URL.Query().Get("per_page"), models.DefaultPerPage)

	query := r.URL.Query()
	query.Set("category", c.ID.String())
	h.cached(w, r, "categories/posts", query, func() (any, error) {
		items, total, err := h.posts.List(r.Context(), f, q)
		if err != nil {
			return nil, err
		}
		return models.Paginated[models.Post]{Data: items, Meta: models.NewPageMeta(q, total)}, nil
	})
}

// ByTag returns one page of posts carrying the tag named by ID or slug.
func (h *Posts) ByTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.tags.FindByIDOrSlug(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		serverError(w, "find tag failed", err)
		return
	}
	if tag == nil {
		notFound(w, "Tag")
		return
	}

	user := middleware.UserFromCtx(r.Context())
	f, errs := filterFromQuery(r, user)
	if errs.any() {
		writeValidation(w, errs)
		return
	}
	f.TagSlug = tag.Slug
	q := models.ParsePageQuery(r.URL.Query().Get("page"), r.URL.Query().Get("per_page"), models.DefaultPerPage)

	query := r.URL.Query()
	query.Set("tag", tag.Slug)
	h.cached(w, r, "tags/posts", query, func() (any, error) {
		items, total, err := h.posts.List(r.Context(), f, q)
		if err != nil {
			return nil, err
		}
		return models.Paginated[models.Post]{Data: items, Meta: models.NewPageMeta(q, total)}, nil
	})
}
