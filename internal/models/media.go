// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Disk identifies the storage backend holding a media blob.
type Disk string

const (
	DiskLocal Disk = "local"
	DiskS3    Disk = "s3"
)

// Valid reports whether d names a configured backend kind.
func (d Disk) Valid() bool {
	switch d {
	case DiskLocal, DiskS3:
		return true
	default:
		return false
	}
}

// Media is a file attached to a post or a comment. The row lives in
// PostgreSQL; the blob lives on the backend named by Disk under Path.
type Media struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	Path       string    `json:"path"`
	Disk       Disk      `json:"disk"`
	Size       int64     `json:"size"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	Owner      Owner     `json:"owner"`
	Collection string    `json:"collection_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// URL is filled in by handlers from the storage backend.
	URL string `json:"url,omitempty"`
}

// IsImage returns true if the media item is an image type.
func (m *Media) IsImage() bool {
	return strings.HasPrefix(m.MimeType, "image/")
}

// MetaThumbnail is the metadata key holding the storage key of an
// image's thumbnail.
const MetaThumbnail = "thumbnail"

// Keys returns every storage key belonging to the item: the original and,
// for images, its thumbnail.
func (m *Media) Keys() []string {
	keys := []string{m.Path}
	if thumb, ok := m.Metadata[MetaThumbnail].(string); ok && thumb != "" {
		keys = append(keys, thumb)
	}
	return keys
}

// HumanSize returns a human-readable file size string.
func (m *Media) HumanSize() string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case m.Size >= mb:
		return fmt.Sprintf("%.1f MB", float64(m.Size)/float64(mb))
	case m.Size >= kb:
		return fmt.Sprintf("%.0f KB", float64(m.Size)/float64(kb))
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}
