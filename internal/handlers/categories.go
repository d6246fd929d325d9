// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpost/internal/models"
	"inkpost/internal/slug"
	"inkpost/internal/store"
)

// Categories groups the category handlers.
type Categories struct {
	categories *store.CategoryStore
}

// NewCategories creates a new Categories handler group.
func NewCategories(categories *store.CategoryStore) *Categories {
	return &Categories{categories: categories}
}

// findCategory looks key up as a UUID first and as a slug otherwise.
func findCategory(r *http.Request, categories *store.CategoryStore, key string) (*models.Category, error) {
	if id, err := uuid.Parse(key); err == nil {
		return categories.FindByID(r.Context(), id)
	}
	return categories.FindBySlug(r.Context(), key)
}

// List returns every category. ?tree=1 nests children under parents.
func (h *Categories) List(w http.ResponseWriter, r *http.Request) {
	var (
		items []models.Category
		err   error
	)
	if t := r.URL.Query().Get("tree"); t == "1" || t == "true" {
		items, err = h.categories.Tree(r.Context())
	} else {
		items, err = h.categories.List(r.Context())
	}
	if err != nil {
		serverError(w, "list categories failed", err)
		return
	}
	writeData(w, http.StatusOK, items)
}

// Show returns a single category by ID or slug.
func (h *Categories) Show(w http.ResponseWriter, r *http.Request) {
	c, err := findCategory(r, h.categories, chi.URLParam(r, "category"))
	if err != nil {
		serverError(w, "find category failed", err)
		return
	}
	if c == nil {
		notFound(w, "Category")
		return
	}
	writeData(w, http.StatusOK, c)
}

// resolveParent validates the parent reference of c. A category cannot be
// its own ancestor.
func (h *Categories) resolveParent(r *http.Request, c *models.Category, raw *string) (fieldErrors, error) {
	c.ParentID = nil
	if raw == nil || *raw == "" {
		return nil, nil
	}
	invalid := fieldErrors{"parent_id": {"The selected parent category is invalid."}}
	parentID, err := uuid.Parse(*raw)
	if err != nil {
		return invalid, nil
	}

	all, err := h.categories.List(r.Context())
	if err != nil {
		return nil, err
	}
	parents := make(map[uuid.UUID]*uuid.UUID, len(all))
	for _, cat := range all {
		parents[cat.ID] = cat.ParentID
	}
	if _, ok := parents[parentID]; !ok {
		return invalid, nil
	}
	if c.ID != uuid.Nil {
		for cur := &parentID; cur != nil; cur = parents[*cur] {
			if *cur == c.ID {
				return fieldErrors{"parent_id": {"A category cannot be nested under itself."}}, nil
			}
		}
	}
	c.ParentID = &parentID
	return nil, nil
}

// apply copies a validated body onto c.
func (h *Categories) apply(r *http.Request, c *models.Category, in *categoryInput) (fieldErrors, error) {
	errs, err := h.resolveParent(r, c, in.ParentID)
	if err != nil || errs.any() {
		return errs, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Description = strings.TrimSpace(in.Description)
	if in.Slug != "" {
		c.Slug = in.Slug
	} else if c.Slug == "" {
		c.Slug = slug.Generate(c.Name)
		if c.Slug == "" {
			return fieldErrors{"slug": {"A slug could not be derived from the name."}}, nil
		}
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	} else if c.ID == uuid.Nil {
		next, err := h.categories.NextSortOrder(r.Context(), c.ParentID)
		if err != nil {
			return nil, err
		}
		c.SortOrder = next
	}
	return nil, nil
}

// Create adds a category.
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}

	c := &models.Category{}
	errs, err := h.apply(r, c, &in)
	if err != nil {
		serverError(w, "resolve category failed", err)
		return
	}
	if errs.any() {
		writeValidation(w, errs)
		return
	}

	created, err := h.categories.Create(r.Context(), c)
	if errors.Is(err, store.ErrSlugTaken) {
		writeValidation(w, fieldErrors{"slug": {"The slug has already been taken."}})
		return
	}
	if err != nil {
		serverError(w, "create category failed", err)
		return
	}
	slog.Info("category created", "category_id", created.ID, "slug", created.Slug)
	writeData(w, http.StatusCreated, created)
}

// Update replaces a category's fields.
func (h *Categories) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "category", "Category")
	if !ok {
		return
	}
	c, err := h.categories.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find category failed", err, "category_id", id)
		return
	}
	if c == nil {
		notFound(w, "Category")
		return
	}

	var in categoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}
	errs, err := h.apply(r, c, &in)
	if err != nil {
		serverError(w, "resolve category failed", err, "category_id", id)
		return
	}
	if errs.any() {
		writeValidation(w, errs)
		return
	}

	err = h.categories.Update(r.Context(), c)
	if errors.Is(err, store.ErrSlugTaken) {
		writeValidation(w, fieldErrors{"slug": {"The slug has already been taken."}})
		return
	}
	if err != nil {
		serverError(w, "update category failed", err, "category_id", id)
		return
	}

	updated, err := h.categories.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "reload category failed", err, "category_id", id)
		return
	}
	writeData(w, http.StatusOK, updated)
}

// Delete removes a category that no post uses.
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "category", "Category")
	if !ok {
		return
	}
	c, err := h.categories.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find category failed", err, "category_id", id)
		return
	}
	if c == nil {
		notFound(w, "Category")
		return
	}

	err = h.categories.Delete(r.Context(), id)
	if errors.Is(err, store.ErrInUse) {
		writeError(w, http.StatusConflict, "The category still has posts.")
		return
	}
	if err != nil {
		serverError(w, "delete category failed", err, "category_id", id)
		return
	}
	slog.Info("category deleted", "category_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted."})
}
