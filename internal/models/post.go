// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus represents the publishing state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	default:
		return false
	}
}

// Post is a blog article. Slugs are unique across all posts and do not
// follow title edits; only an explicit slug edit changes them.
type Post struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Excerpt         string     `json:"excerpt"`
	Content         string     `json:"content"`
	ContentHTML     string     `json:"content_html,omitempty"`
	FeaturedImageID *uuid.UUID `json:"featured_image_id,omitempty"`
	Status          PostStatus `json:"status"`
	AuthorID        uuid.UUID  `json:"user_id"`
	CategoryID      uuid.UUID  `json:"category_id"`
	Featured        bool       `json:"featured"`
	Views           int64      `json:"views"`
	Likes           int64      `json:"likes"`
	MetaTitle       *string    `json:"meta_title,omitempty"`
	MetaDescription *string    `json:"meta_description,omitempty"`
	MetaKeywords    StringList `json:"meta_keywords"`
	ReadTime        int        `json:"read_time"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Virtual fields populated by store methods.
	AuthorName   string `json:"author_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	Tags         []Tag  `json:"tags,omitempty"`
}

// IsPublished returns true if the post is in published status.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// ApplyStatus moves the post to status s at time now, keeping published_at
// consistent: set on the first publish, cleared when returning to draft,
// kept when archived.
func (p *Post) ApplyStatus(s PostStatus, now time.Time) {
	p.Status = s
	switch s {
	case PostStatusDraft:
		p.PublishedAt = nil
	case PostStatusPublished:
		if p.PublishedAt == nil {
			t := now
			p.PublishedAt = &t
		}
	case PostStatusArchived:
	}
}

// PostFilter narrows a post listing.
type PostFilter struct {
	CategoryID   *uuid.UUID
	CategorySlug string
	AuthorID     *uuid.UUID
	TagSlug      string
	Search       string
	Status       *PostStatus
	Featured     *bool
}
