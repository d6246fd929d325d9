// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"inkpost/internal/models"
	"inkpost/internal/slug"
)

// maxSlugAttempts bounds the suffix search for a derived slug.
const maxSlugAttempts = 50

// PostStore handles all post-related database operations.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// postSelect joins the author and category names onto each post row.
const postSelect = `
	SELECT p.id, p.title, p.slug, p.excerpt, p.content, p.featured_image, p.status,
	       p.user_id, p.category_id, p.featured, p.views, p.likes,
	       p.meta_title, p.meta_description, p.meta_keywords, p.read_time,
	       p.published_at, p.created_at, p.updated_at,
	       u.name, c.name
	FROM posts p
	JOIN users u ON u.id = p.user_id
	JOIN categories c ON c.id = p.category_id`

// postReturning is the RETURNING list for writes; joined names are filled
// in by a follow-up read.
const postReturning = `id`

func scanPost(scanner interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	err := scanner.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Content, &p.FeaturedImageID, &p.Status,
		&p.AuthorID, &p.CategoryID, &p.Featured, &p.Views, &p.Likes,
		&p.MetaTitle, &p.MetaDescription, &p.MetaKeywords, &p.ReadTime,
		&p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorName, &p.CategoryName,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPostRows(rows *sql.Rows) ([]models.Post, error) {
	defer rows.Close()
	items := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// whereClause renders a PostFilter as SQL conditions and arguments.
func whereClause(f models.PostFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.Status != nil {
		add("p.status = ?", *f.Status)
	}
	if f.CategoryID != nil {
		add("p.category_id = ?", *f.CategoryID)
	}
	if f.CategorySlug != "" {
		add("c.slug = ?", f.CategorySlug)
	}
	if f.TagSlug != "" {
		add(`EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.slug = ?)`, f.TagSlug)
	}
	if f.AuthorID != nil {
		add("p.user_id = ?", *f.AuthorID)
	}
	if f.Featured != nil {
		add("p.featured = ?", *f.Featured)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(p.title ILIKE ? OR p.excerpt ILIKE ? OR p.content ILIKE ?)", "%"+escapeLike(s)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of posts matching f, newest publication first,
// along with the total number of matches.
func (s *PostStore) List(ctx context.Context, f models.PostFilter, q models.PageQuery) ([]models.Post, int64, error) {
	where, args := whereClause(f)

	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM posts p
		JOIN categories c ON c.id = p.category_id`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	n := len(args)
	args = append(args, q.PerPage, q.Offset())
	rows, err := s.db.QueryContext(ctx, postSelect+where+`
		ORDER BY p.published_at DESC NULLS LAST, p.created_at DESC
		LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	items, err := scanPostRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Featured returns up to limit featured published posts.
func (s *PostStore) Featured(ctx context.Context, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE p.status = 'published' AND p.featured
		ORDER BY p.published_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("featured posts: %w", err)
	}
	return scanPostRows(rows)
}

// Recent returns the limit most recently published posts.
func (s *PostStore) Recent(ctx context.Context, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE p.status = 'published'
		ORDER BY p.published_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	return scanPostRows(rows)
}

// FindByID retrieves a post by UUID. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.findOne(ctx, "p.id = $1", id)
}

// FindBySlug retrieves a post by slug. Returns nil if not found.
func (s *PostStore) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, "p.slug = $1", slug)
}

// FindByIDOrSlug looks key up as a UUID first and as a slug otherwise.
func (s *PostStore) FindByIDOrSlug(ctx context.Context, key string) (*models.Post, error) {
	if id, err := uuid.Parse(key); err == nil {
		return s.FindByID(ctx, id)
	}
	return s.FindBySlug(ctx, key)
}

func (s *PostStore) findOne(ctx context.Context, cond string, arg any) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, postSelect+` WHERE `+cond, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	return p, nil
}

// Create inserts a post. When explicitSlug is false the slug was derived
// from the title and a colliding slug gets a numeric suffix; when true a
// collision returns ErrSlugTaken. Existing posts are never touched.
func (s *PostStore) Create(ctx context.Context, p *models.Post, explicitSlug bool) (*models.Post, error) {
	base := p.Slug
	attempts := maxSlugAttempts
	if explicitSlug {
		attempts = 1
	}

	for n := 1; n <= attempts; n++ {
		candidate := slug.WithSuffix(base, n)
		var id uuid.UUID
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO posts (title, slug, excerpt, content, featured_image, status,
				user_id, category_id, featured, meta_title, meta_description,
				meta_keywords, read_time, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING `+postReturning,
			p.Title, candidate, p.Excerpt, p.Content, p.FeaturedImageID, p.Status,
			p.AuthorID, p.CategoryID, p.Featured, p.MetaTitle, p.MetaDescription,
			p.MetaKeywords, p.ReadTime, p.PublishedAt,
		).Scan(&id)
		if violates(err, codeUniqueViolation, "posts_slug_key") {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		return s.FindByID(ctx, id)
	}
	return nil, ErrSlugTaken
}

// Update saves every editable field of p. A slug change that collides
// with another post returns ErrSlugTaken.
func (s *PostStore) Update(ctx context.Context, p *models.Post) (*models.Post, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET
			title = $1, slug = $2, excerpt = $3, content = $4, featured_image = $5,
			status = $6, category_id = $7, featured = $8, meta_title = $9,
			meta_description = $10, meta_keywords = $11, read_time = $12,
			published_at = $13, updated_at = NOW()
		WHERE id = $14
	`, p.Title, p.Slug, p.Excerpt, p.Content, p.FeaturedImageID,
		p.Status, p.CategoryID, p.Featured, p.MetaTitle,
		p.MetaDescription, p.MetaKeywords, p.ReadTime,
		p.PublishedAt, p.ID)
	if violates(err, codeUniqueViolation, "posts_slug_key") {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.FindByID(ctx, p.ID)
}

// IncrementViews bumps the view counter and returns the new value, or
// false when the post does not exist.
func (s *PostStore) IncrementViews(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	return s.bump(ctx, "views", id)
}

// Like bumps the like counter and returns the new value.
func (s *PostStore) Like(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	return s.bump(ctx, "likes", id)
}

func (s *PostStore) bump(ctx context.Context, column string, id uuid.UUID) (int64, bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE posts SET `+column+` = `+column+` + 1 WHERE id = $1 RETURNING `+column, id,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment post %s: %w", column, err)
	}
	return n, true, nil
}

// Delete removes a post with all of its comments and returns the media
// rows that went with them: the post's own and every comment's.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) ([]models.Media, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	media, err := collectMedia(ctx, tx, `
		SELECT 'post'::text, $1::uuid
		UNION ALL
		SELECT 'comment'::text, id FROM comments WHERE post_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete post commit: %w", err)
	}
	return media, nil
}

// PostStats summarises posts for the dashboard.
type PostStats struct {
	ByStatus   map[models.PostStatus]int `json:"by_status"`
	Total      int                       `json:"total"`
	TotalViews int64                     `json:"total_views"`
	TotalLikes int64                     `json:"total_likes"`
}

// Stats returns post counts per status and aggregate counters.
func (s *PostStore) Stats(ctx context.Context) (*PostStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(views), 0), COALESCE(SUM(likes), 0)
		FROM posts GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("post stats: %w", err)
	}
	defer rows.Close()

	st := &PostStats{ByStatus: map[models.PostStatus]int{
		models.PostStatusDraft:     0,
		models.PostStatusPublished: 0,
		models.PostStatusArchived:  0,
	}}
	for rows.Next() {
		var status models.PostStatus
		var n int
		var views, likes int64
		if err := rows.Scan(&status, &n, &views, &likes); err != nil {
			return nil, fmt.Errorf("scan post stats: %w", err)
		}
		st.ByStatus[status] = n
		st.Total += n
		st.TotalViews += views
		st.TotalLikes += likes
	}
	return st, rows.Err()
}
