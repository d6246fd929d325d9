// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"inkpost/internal/models"
)

func TestMediaStoreCreateAndFind(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)
	ctx := context.Background()

	cat := newCategory(t, db)
	p := newPost(t, db, newUser(t, db, models.RoleUser), cat, "Illustrated")
	m := newMedia(t, db, models.PostOwner(p.ID))

	if m.Collection != "default" {
		t.Errorf("collection = %q, want default", m.Collection)
	}

	got, err := s.FindByID(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("FindByID = %v, %v", got, err)
	}
	if got.Owner != models.PostOwner(p.ID) || got.Size != 128 || got.Disk != models.DiskLocal {
		t.Errorf("media = %+v", got)
	}

	missing, err := s.FindByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("FindByID(unknown) = %v, %v", missing, err)
	}
}

func TestMediaStoreCreateUnknownOwnerKind(t *testing.T) {
	db := testDB(t)
	_, err := NewMediaStore(db).Create(context.Background(), &models.Media{
		Name: "x.png", FileName: "x.png", MimeType: "image/png", Path: "x.png",
		Disk: models.DiskLocal, Owner: models.Owner{Kind: "page", ID: uuid.New()},
	})
	if !errors.Is(err, models.ErrUnknownOwnerKind) {
		t.Errorf("expected ErrUnknownOwnerKind, got %v", err)
	}
}

func TestMediaStoreResolveOwner(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)
	ctx := context.Background()

	cat := newCategory(t, db)
	author := newUser(t, db, models.RoleUser)
	p := newPost(t, db, author, cat, "Owner")
	c := newComment(t, db, p, author, nil)

	ref, err := s.ResolveOwner(ctx, models.PostOwner(p.ID))
	if err != nil || ref == nil {
		t.Fatalf("ResolveOwner(post) = %v, %v", ref, err)
	}
	if ref.PostID != p.ID || ref.CommentAuthor != nil || ref.CommentStatus != "" {
		t.Errorf("post ref = %+v", ref)
	}

	ref, err = s.ResolveOwner(ctx, models.CommentOwner(c.ID))
	if err != nil || ref == nil {
		t.Fatalf("ResolveOwner(comment) = %v, %v", ref, err)
	}
	if ref.PostID != p.ID || ref.CommentAuthor == nil || *ref.CommentAuthor != author.ID || ref.CommentStatus != c.Status {
		t.Errorf("comment ref = %+v", ref)
	}

	ref, err = s.ResolveOwner(ctx, models.CommentOwner(p.ID))
	if err != nil || ref != nil {
		t.Errorf("post id as comment owner = %+v, %v; want nil", ref, err)
	}

	if _, err := s.ResolveOwner(ctx, models.Owner{Kind: "user", ID: p.ID}); !errors.Is(err, models.ErrUnknownOwnerKind) {
		t.Errorf("unknown kind: %v", err)
	}
}

func TestMediaStoreListByOwner(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)
	ctx := context.Background()

	cat := newCategory(t, db)
	p := newPost(t, db, newUser(t, db, models.RoleUser), cat, "Gallery")
	owner := models.PostOwner(p.ID)

	newMedia(t, db, owner)
	cover, err := s.Create(ctx, &models.Media{
		Name: "cover.png", FileName: "cover.png", MimeType: "image/png", Path: "test/cover-" + unique(),
		Disk: models.DiskLocal, Size: 64, Owner: owner, Collection: "cover",
	})
	if err != nil {
		t.Fatalf("Create cover: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM media WHERE id = $1", cover.ID) })

	all, err := s.ListByOwner(ctx, owner, "")
	if err != nil || len(all) != 2 {
		t.Errorf("ListByOwner(all) = %d items, %v", len(all), err)
	}
	covers, _ := s.ListByOwner(ctx, owner, "cover")
	if len(covers) != 1 || covers[0].ID != cover.ID {
		t.Errorf("ListByOwner(cover) = %+v", covers)
	}
}

func TestMediaStoreDeleteClearsFeaturedImage(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)
	ctx := context.Background()

	cat := newCategory(t, db)
	p := newPost(t, db, newUser(t, db, models.RoleUser), cat, "Featured")
	m := newMedia(t, db, models.PostOwner(p.ID))

	p.FeaturedImageID = &m.ID
	if _, err := NewPostStore(db).Update(ctx, p); err != nil {
		t.Fatalf("set featured image: %v", err)
	}

	deleted, err := s.Delete(ctx, m.ID)
	if err != nil || deleted == nil || deleted.Path != m.Path {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}

	after, _ := NewPostStore(db).FindByID(ctx, p.ID)
	if after.FeaturedImageID != nil {
		t.Error("featured image reference should be cleared")
	}

	again, err := s.Delete(ctx, m.ID)
	if err != nil || again != nil {
		t.Errorf("second Delete = %v, %v", again, err)
	}
}

func TestMediaStoreListAndCount(t *testing.T) {
	db := testDB(t)
	s := NewMediaStore(db)
	ctx := context.Background()

	cat := newCategory(t, db)
	p := newPost(t, db, newUser(t, db, models.RoleUser), cat, "Counted")
	newMedia(t, db, models.PostOwner(p.ID))

	items, total, err := s.List(ctx, models.PageQuery{Page: 1, PerPage: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total < 1 || len(items) != 1 {
		t.Errorf("List = %d items, total %d", len(items), total)
	}

	n, err := s.Count(ctx)
	if err != nil || n < 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}
