// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inkpost/internal/models"
	"inkpost/internal/slug"
)

// TagStore handles tags and their assignment to posts.
type TagStore struct {
	db *sql.DB
}

// NewTagStore creates a new TagStore with the given database connection.
func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

// tagSelect counts the published posts carrying each tag.
const tagSelect = `
	SELECT t.id, t.name, t.slug, t.created_at, COUNT(p.id)
	FROM tags t
	LEFT JOIN post_tags pt ON pt.tag_id = t.id
	LEFT JOIN posts p ON p.id = pt.post_id AND p.status = 'published'`

func scanTags(rows *sql.Rows) ([]models.Tag, error) {
	defer rows.Close()
	items := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.PostCount); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// List returns every tag in name order, including unused ones.
func (s *TagStore) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, tagSelect+`
		GROUP BY t.id
		ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return scanTags(rows)
}

// Popular returns up to limit tags carried by at least one published
// post, most used first.
func (s *TagStore) Popular(ctx context.Context, limit int) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, tagSelect+`
		GROUP BY t.id
		HAVING COUNT(p.id) > 0
		ORDER BY COUNT(p.id) DESC, t.name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("popular tags: %w", err)
	}
	return scanTags(rows)
}

// FindByIDOrSlug looks a tag up by UUID or slug. Returns nil if missing.
func (s *TagStore) FindByIDOrSlug(ctx context.Context, key string) (*models.Tag, error) {
	cond, arg := "t.slug = $1", any(key)
	if id, err := uuid.Parse(key); err == nil {
		cond, arg = "t.id = $1", id
	}
	rows, err := s.db.QueryContext(ctx, tagSelect+`
		WHERE `+cond+`
		GROUP BY t.id`, arg)
	if err != nil {
		return nil, fmt.Errorf("find tag: %w", err)
	}
	items, err := scanTags(rows)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// ForPost returns the tags of a post in name order.
func (s *TagStore) ForPost(ctx context.Context, postID uuid.UUID) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, tagSelect+`
		WHERE t.id IN (SELECT tag_id FROM post_tags WHERE post_id = $1)
		GROUP BY t.id
		ORDER BY t.name`, postID)
	if err != nil {
		return nil, fmt.Errorf("post tags: %w", err)
	}
	return scanTags(rows)
}

// ErrEmptyTag is returned for a tag name with no sluggable characters.
var ErrEmptyTag = errors.New("tag has no usable characters")

// SetForPost replaces the tags of a post with names, creating tags that
// do not exist yet. Names that share a slug collapse into one tag, and
// an existing tag keeps its original name.
func (s *TagStore) SetForPost(ctx context.Context, postID uuid.UUID, names []string) ([]models.Tag, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return nil, fmt.Errorf("clear post tags: %w", err)
	}

	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		sl := slug.Generate(name)
		if sl == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyTag, name)
		}
		if seen[sl] {
			continue
		}
		seen[sl] = true

		// The no-op update makes RETURNING yield the existing row.
		var tagID uuid.UUID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id`, name, sl,
		).Scan(&tagID)
		if err != nil {
			return nil, fmt.Errorf("upsert tag %q: %w", sl, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)`, postID, tagID,
		); err != nil {
			return nil, fmt.Errorf("tag post: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("set post tags commit: %w", err)
	}
	return s.ForPost(ctx, postID)
}
