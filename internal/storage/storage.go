// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage keeps media blobs on one of the configured disks. A
// media row names its disk, so every backend that ever received uploads
// must stay registered for deletes and URLs to keep working.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkpost/internal/models"
)

// ErrUnknownDisk is returned when a media row names a disk that is not
// registered.
var ErrUnknownDisk = errors.New("unknown storage disk")

// ErrNotFound is returned by Open when the blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Backend stores blobs under slash-separated keys.
type Backend interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Disks routes operations to the backend a media row was stored on.
type Disks struct {
	backends map[models.Disk]Backend
	def      models.Disk
}

// NewDisks returns a router whose uploads go to def. def must be one of
// the registered backends.
func NewDisks(def models.Disk, backends map[models.Disk]Backend) (*Disks, error) {
	if _, ok := backends[def]; !ok {
		return nil, fmt.Errorf("%w: default %q is not configured", ErrUnknownDisk, def)
	}
	return &Disks{backends: backends, def: def}, nil
}

// Default returns the disk new uploads are written to.
func (d *Disks) Default() models.Disk {
	return d.def
}

// For returns the backend for disk.
func (d *Disks) For(disk models.Disk) (Backend, error) {
	b, ok := d.backends[disk]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, disk)
	}
	return b, nil
}

// URL returns the public URL of a stored media row, or "" when its disk
// is not registered.
func (d *Disks) URL(m *models.Media) string {
	b, err := d.For(m.Disk)
	if err != nil {
		return ""
	}
	return b.URL(m.Path)
}

// Open streams the original blob of a media row from its disk.
func (d *Disks) Open(ctx context.Context, m *models.Media) (io.ReadCloser, error) {
	b, err := d.For(m.Disk)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, m.Path)
}

// Remove deletes the blobs behind media rows the database already
// dropped. Failures are collected rather than stopping the sweep.
func (d *Disks) Remove(ctx context.Context, items []models.Media) error {
	var errs []error
	for _, m := range items {
		b, err := d.For(m.Disk)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, key := range m.Keys() {
			if err := b.Delete(ctx, key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// NewKey builds a collision-free key for an upload: the owner's folder, a
// month bucket, and a random file name that keeps the original extension.
func NewKey(owner models.Owner, originalName string, now time.Time) (key, fileName string) {
	ext := strings.ToLower(path.Ext(originalName))
	fileName = uuid.NewString() + ext
	key = path.Join(string(owner.Kind), now.UTC().Format("2006/01"), fileName)
	return key, fileName
}
