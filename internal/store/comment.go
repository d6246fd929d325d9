// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"inkpost/internal/models"
)

// CommentStore handles all comment-related database operations.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a new CommentStore with the given database connection.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `id, post_id, user_id, parent_id, author_name, author_email,
	content, status, likes, metadata, created_at, updated_at`

func scanComment(scanner interface{ Scan(...any) error }) (*models.Comment, error) {
	var c models.Comment
	err := scanner.Scan(
		&c.ID, &c.PostID, &c.UserID, &c.ParentID, &c.AuthorName, &c.AuthorEmail,
		&c.Content, &c.Status, &c.Likes, &c.Metadata, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByPost returns the comments of a post as a thread, replies nested
// under their parents. A nil status returns every comment. Replies whose
// ancestor is filtered out are not returned.
func (s *CommentStore) ListByPost(ctx context.Context, postID uuid.UUID, status *models.CommentStatus) ([]models.Comment, error) {
	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE post_id = $1 AND ($2::text IS NULL OR status = $2::text)
		ORDER BY created_at ASC, id ASC
	`, postID, statusArg)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var flat []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		flat = append(flat, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.BuildThread(flat), nil
}

// FindByID retrieves a comment by UUID. Returns nil if not found.
func (s *CommentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comment by id: %w", err)
	}
	return c, nil
}

// Create inserts a comment. A parent on a different post, or one that does
// not exist, returns ErrParentMismatch.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	if c.Status == "" {
		c.Status = models.CommentPending
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, user_id, parent_id, author_name, author_email,
			content, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+commentColumns,
		c.PostID, c.UserID, c.ParentID, c.AuthorName, c.AuthorEmail,
		c.Content, c.Status, c.Metadata,
	)
	created, err := scanComment(row)
	if violates(err, codeForeignKeyViolation, "comments_parent_same_post") {
		return nil, ErrParentMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	created.Replies = []models.Comment{}
	return created, nil
}

// Update changes the status and content of a comment. Nil arguments keep
// the current value. Returns nil if the comment does not exist.
func (s *CommentStore) Update(ctx context.Context, id uuid.UUID, status *models.CommentStatus, content *string) (*models.Comment, error) {
	var statusArg, contentArg any
	if status != nil {
		statusArg = string(*status)
	}
	if content != nil {
		contentArg = *content
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE comments SET
			status = COALESCE($1::text, status),
			content = COALESCE($2::text, content),
			updated_at = NOW()
		WHERE id = $3
		RETURNING `+commentColumns,
		statusArg, contentArg, id,
	)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return c, nil
}

// Delete removes a comment and, through the parent cascade, every
// transitive reply. The media owned by any removed comment is returned.
func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) ([]models.Media, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	media, err := collectMedia(ctx, tx, `
		WITH RECURSIVE subtree (id) AS (
			SELECT id FROM comments WHERE id = $1
			UNION ALL
			SELECT c.id FROM comments c JOIN subtree t ON c.parent_id = t.id
		)
		SELECT 'comment'::text, id FROM subtree
	`, id)
	if err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete comment commit: %w", err)
	}
	return media, nil
}

// Like bumps the like counter and returns the new value, or false when
// the comment does not exist.
func (s *CommentStore) Like(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE comments SET likes = likes + 1 WHERE id = $1 RETURNING likes`, id,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("like comment: %w", err)
	}
	return n, true, nil
}

// CountByStatus returns the number of comments in each moderation state.
func (s *CommentStore) CountByStatus(ctx context.Context) (map[models.CommentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM comments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	defer rows.Close()

	counts := map[models.CommentStatus]int{
		models.CommentPending:  0,
		models.CommentApproved: 0,
		models.CommentRejected: 0,
	}
	for rows.Next() {
		var status models.CommentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan comment count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
