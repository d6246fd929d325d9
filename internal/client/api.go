// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"inkpost/internal/models"
)

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// Live reports whether a response is still wanted by the view that asked
// for it. Views pass their own context to every call and must check Live
// before applying a late result; a cancelled view context means discard.
func Live(ctx context.Context) bool {
	return ctx.Err() == nil
}

// ClampPage keeps page inside the bounds described by meta. Servers answer
// out-of-range pages with an empty list, so callers clamp before asking.
func ClampPage(page int, meta models.PageMeta) int {
	if page < 1 {
		return 1
	}
	last := meta.LastPage
	if last < 1 {
		last = 1
	}
	if page > last {
		return last
	}
	return page
}

// Profile returns the principal behind the stored credential.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// PostQuery filters a post listing. Zero fields are omitted.
type PostQuery struct {
	Page     int
	PerPage  int
	Category string // ID or slug
	Tag      string // slug
	Search   string
	Status   models.PostStatus
}

func (q PostQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// ListPosts returns one page of posts.
func (c *Client) ListPosts(ctx context.Context, q PostQuery) (*models.Paginated[models.Post], error) {
	var page models.Paginated[models.Post]
	if err := c.do(ctx, http.MethodGet, withQuery("/api/posts", q.values()), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPost fetches a post by ID or slug.
func (c *Client) GetPost(ctx context.Context, idOrSlug string) (*models.Post, error) {
	var resp dataEnvelope[*models.Post]
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(idOrSlug), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// PostInput is the body of a post create or update.
type PostInput struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug,omitempty"`
	Excerpt         string   `json:"excerpt,omitempty"`
	Content         string   `json:"content"`
	Status          string   `json:"status,omitempty"`
	CategoryID      string   `json:"category_id"`
	FeaturedImageID *string  `json:"featured_image_id,omitempty"`
	Featured        bool     `json:"featured,omitempty"`
	MetaTitle       *string  `json:"meta_title,omitempty"`
	MetaDescription *string  `json:"meta_description,omitempty"`
	MetaKeywords    []string `json:"meta_keywords,omitempty"`
}

// CreatePost publishes or drafts a post authored by the principal.
func (c *Client) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	var resp dataEnvelope[*models.Post]
	if err := c.do(ctx, http.MethodPost, "/api/posts", in, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdatePost replaces the editable fields of a post.
func (c *Client) UpdatePost(ctx context.Context, id uuid.UUID, in PostInput) (*models.Post, error) {
	var resp dataEnvelope[*models.Post]
	if err := c.do(ctx, http.MethodPut, "/api/posts/"+id.String(), in, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeletePost removes a post with its comments and media.
func (c *Client) DeletePost(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/"+id.String(), nil, nil)
}

// ListComments returns the comment thread of a post, replies nested.
func (c *Client) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	var resp dataEnvelope[[]models.Comment]
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+postID.String()+"/comments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CommentInput is the body of a new comment. Guests must set AuthorName
// and AuthorEmail.
type CommentInput struct {
	Content     string     `json:"content"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	AuthorName  string     `json:"author_name,omitempty"`
	AuthorEmail string     `json:"author_email,omitempty"`
}

// CreateComment adds a comment to a post. It waits for moderation.
func (c *Client) CreateComment(ctx context.Context, postID uuid.UUID, in CommentInput) (*models.Comment, error) {
	var resp dataEnvelope[*models.Comment]
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+postID.String()+"/comments", in, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CommentUpdate moderates a comment. Nil fields are left alone.
type CommentUpdate struct {
	Status  *models.CommentStatus `json:"status,omitempty"`
	Content *string               `json:"content,omitempty"`
}

// UpdateComment changes a comment's status or content.
func (c *Client) UpdateComment(ctx context.Context, id uuid.UUID, in CommentUpdate) (*models.Comment, error) {
	var resp dataEnvelope[*models.Comment]
	if err := c.do(ctx, http.MethodPut, "/api/comments/"+id.String(), in, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeleteComment removes a comment and its replies.
func (c *Client) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/"+id.String(), nil, nil)
}

// Upload is a file to attach to an owner.
type Upload struct {
	Owner      models.Owner
	Collection string
	AltText    string
	FileName   string
	Body       io.Reader
}

// UploadMedia attaches a file to a post or comment.
func (c *Client) UploadMedia(ctx context.Context, up Upload) (*models.Media, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"owner_type": string(up.Owner.Kind),
		"owner_id":   up.Owner.ID.String(),
		"collection": up.Collection,
		"alt_text":   up.AltText,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return nil, fmt.Errorf("upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	var resp dataEnvelope[*models.Media]
	err = c.send(ctx, call{
		method: http.MethodPost,
		path:   "/api/media",
		body:   &buf,
		ctype:  mw.FormDataContentType(),
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
