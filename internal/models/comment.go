// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// Valid reports whether s is a known moderation state.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected:
		return true
	default:
		return false
	}
}

// Comment is a reply to a post or, through ParentID, to another comment of
// the same post. Guest comments carry AuthorName and AuthorEmail instead of
// a user reference.
type Comment struct {
	ID          uuid.UUID     `json:"id"`
	PostID      uuid.UUID     `json:"post_id"`
	UserID      *uuid.UUID    `json:"user_id"`
	ParentID    *uuid.UUID    `json:"parent_id"`
	AuthorName  *string       `json:"author_name"`
	AuthorEmail *string       `json:"-"`
	Content     string        `json:"content"`
	Status      CommentStatus `json:"status"`
	Likes       int64         `json:"likes"`
	Metadata    Metadata      `json:"metadata,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Replies is populated when comments are returned as a thread.
	Replies []Comment `json:"replies"`
}

// IsGuest reports whether the comment was written without an account, or
// its author has since been removed.
func (c *Comment) IsGuest() bool {
	return c.UserID == nil
}

// BuildThread nests a flat list of comments of one post under their
// parents. Input order is kept among siblings. Comments whose parent is
// absent from the list (filtered out by status, for example) are dropped
// together with their subtree.
func BuildThread(flat []Comment) []Comment {
	children := make(map[uuid.UUID][]Comment)
	var roots []Comment
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var attach func(nodes []Comment) []Comment
	attach = func(nodes []Comment) []Comment {
		for i := range nodes {
			nodes[i].Replies = attach(children[nodes[i].ID])
			if nodes[i].Replies == nil {
				nodes[i].Replies = []Comment{}
			}
		}
		return nodes
	}

	roots = attach(roots)
	if roots == nil {
		roots = []Comment{}
	}
	return roots
}
