// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"inkpost/internal/models"
)

// ownerQueries maps each attachable entity kind to the query that resolves
// it to the post it belongs to. Media rows carry no foreign key to their
// owner, so existence and access checks go through this table.
var ownerQueries = map[models.OwnerKind]string{
	models.OwnerPost:    `SELECT id, NULL::uuid, NULL::text FROM posts WHERE id = $1`,
	models.OwnerComment: `SELECT post_id, user_id, status FROM comments WHERE id = $1`,
}

// OwnerRef is what access checks need to know about a media owner. The
// comment fields are only set for comment owners.
type OwnerRef struct {
	PostID        uuid.UUID
	CommentAuthor *uuid.UUID
	CommentStatus models.CommentStatus
}

// MediaStore handles all media-related database operations.
type MediaStore struct {
	db *sql.DB
}

// NewMediaStore creates a new MediaStore with the given database connection.
func NewMediaStore(db *sql.DB) *MediaStore {
	return &MediaStore{db: db}
}

// mediaColumns lists the columns selected in media queries.
const mediaColumns = `id, name, file_name, mime_type, path, disk, size, metadata,
	owner_type, owner_id, collection_name, created_at, updated_at`

// scanMedia scans a media row from the result set.
func scanMedia(scanner interface{ Scan(...any) error }) (*models.Media, error) {
	var m models.Media
	err := scanner.Scan(
		&m.ID, &m.Name, &m.FileName, &m.MimeType, &m.Path, &m.Disk, &m.Size, &m.Metadata,
		&m.Owner.Kind, &m.Owner.ID, &m.Collection, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMediaRows(rows *sql.Rows) ([]models.Media, error) {
	defer rows.Close()
	items := []models.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// ResolveOwner finds the post behind owner. Returns nil if the owner does
// not exist.
func (s *MediaStore) ResolveOwner(ctx context.Context, owner models.Owner) (*OwnerRef, error) {
	query, ok := ownerQueries[owner.Kind]
	if !ok {
		return nil, fmt.Errorf("resolve owner: %w: %q", models.ErrUnknownOwnerKind, owner.Kind)
	}
	var (
		ref    OwnerRef
		author uuid.NullUUID
		status sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, owner.ID).Scan(&ref.PostID, &author, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}
	if author.Valid {
		ref.CommentAuthor = &author.UUID
	}
	ref.CommentStatus = models.CommentStatus(status.String)
	return &ref, nil
}

// Create inserts a new media record and returns it with the generated ID.
func (s *MediaStore) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	if _, ok := ownerQueries[m.Owner.Kind]; !ok {
		return nil, fmt.Errorf("create media: %w: %q", models.ErrUnknownOwnerKind, m.Owner.Kind)
	}
	if m.Collection == "" {
		m.Collection = "default"
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO media (name, file_name, mime_type, path, disk, size, metadata,
			owner_type, owner_id, collection_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+mediaColumns,
		m.Name, m.FileName, m.MimeType, m.Path, m.Disk, m.Size, m.Metadata,
		m.Owner.Kind, m.Owner.ID, m.Collection,
	)
	created, err := scanMedia(row)
	if err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	return created, nil
}

// FindByID retrieves a single media record by its UUID.
func (s *MediaStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find media by id: %w", err)
	}
	return m, nil
}

// ListByOwner returns the media attached to owner, optionally narrowed to
// one collection, oldest first.
func (s *MediaStore) ListByOwner(ctx context.Context, owner models.Owner, collection string) ([]models.Media, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+`
		FROM media
		WHERE owner_type = $1 AND owner_id = $2
		  AND ($3 = '' OR collection_name = $3)
		ORDER BY created_at ASC
	`, owner.Kind, owner.ID, collection)
	if err != nil {
		return nil, fmt.Errorf("list media by owner: %w", err)
	}
	return scanMediaRows(rows)
}

// List returns media items ordered by creation date, with pagination.
func (s *MediaStore) List(ctx context.Context, q models.PageQuery) ([]models.Media, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+`
		FROM media
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	items, err := scanMediaRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Delete removes a media record and returns it so the caller can clean
// up the blob. Posts using it as their featured image lose the reference.
func (s *MediaStore) Delete(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM media WHERE id = $1
		RETURNING `+mediaColumns, id)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete media: %w", err)
	}
	return m, nil
}

// Count returns the total number of media items.
func (s *MediaStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return count, nil
}

// collectMedia locks and returns the media owned by the (kind, id) pairs
// produced by ownersQuery. Callers run it inside the transaction that
// deletes those owners.
func collectMedia(ctx context.Context, q querier, ownersQuery string, args ...any) ([]models.Media, error) {
	rows, err := q.QueryContext(ctx, `
		WITH owners (kind, id) AS (`+ownersQuery+`)
		SELECT m.id, m.name, m.file_name, m.mime_type, m.path, m.disk, m.size, m.metadata,
		       m.owner_type, m.owner_id, m.collection_name, m.created_at, m.updated_at
		FROM media m
		JOIN owners o ON m.owner_type = o.kind AND m.owner_id = o.id
		ORDER BY m.created_at
		FOR UPDATE OF m
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("collect media: %w", err)
	}
	return scanMediaRows(rows)
}
