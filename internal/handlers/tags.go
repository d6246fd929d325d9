// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"inkpost/internal/store"
)

const defaultPopularTags = 10

// Tags groups the tag handlers. Tags are written through posts.
type Tags struct {
	tags *store.TagStore
}

// NewTags creates a new Tags handler group.
func NewTags(tags *store.TagStore) *Tags {
	return &Tags{tags: tags}
}

// List returns every tag with its published post count.
func (h *Tags) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.tags.List(r.Context())
	if err != nil {
		serverError(w, "list tags failed", err)
		return
	}
	writeData(w, http.StatusOK, items)
}

// Popular returns the most used tags. ?limit= defaults to 10.
func (h *Tags) Popular(w http.ResponseWriter, r *http.Request) {
	items, err := h.tags.Popular(r.Context(), limitParam(r, defaultPopularTags))
	if err != nil {
		serverError(w, "popular tags failed", err)
		return
	}
	writeData(w, http.StatusOK, items)
}
