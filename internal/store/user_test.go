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

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	email := "Test-Create-" + unique() + "@Store-Test.local"
	user, err := s.Create(ctx, "Test User", email, "testpass123", models.RoleModerator)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", user.ID) })

	if user.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if user.Email != normalizeEmail(email) {
		t.Errorf("email: got %q, want lowercased %q", user.Email, normalizeEmail(email))
	}
	if user.Name != "Test User" {
		t.Errorf("name: got %q", user.Name)
	}
	if user.Role != models.RoleModerator {
		t.Errorf("role: got %q, want moderator", user.Role)
	}
	if user.TOTPEnabled {
		t.Error("expected totp_enabled=false for new user")
	}
	if user.PasswordHash == "" || user.PasswordHash == "testpass123" {
		t.Error("password must be stored hashed")
	}
	if !s.CheckPassword(user, "testpass123") {
		t.Error("CheckPassword rejected the right password")
	}
	if s.CheckPassword(user, "wrong") {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestUserStoreCreateDuplicateEmail(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	u := newUser(t, db, models.RoleUser)

	_, err := s.Create(context.Background(), "Other", u.Email, "password", models.RoleUser)
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserStoreCreateRejectsUnknownRole(t *testing.T) {
	db := testDB(t)
	_, err := NewUserStore(db).Create(context.Background(), "X", "x-"+unique()+"@store-test.local", "password", "root")
	if err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestUserStoreFind(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	missing, err := s.FindByEmail(ctx, "nobody-"+unique()+"@store-test.local")
	if err != nil {
		t.Fatalf("FindByEmail (not found): %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}

	u := newUser(t, db, models.RoleUser)

	byEmail, err := s.FindByEmail(ctx, "  "+u.Email+" ")
	if err != nil || byEmail == nil {
		t.Fatalf("FindByEmail: %v, %v", byEmail, err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("FindByEmail returned %v, want %v", byEmail.ID, u.ID)
	}

	byID, err := s.FindByID(ctx, u.ID)
	if err != nil || byID == nil {
		t.Fatalf("FindByID: %v, %v", byID, err)
	}
	if byID.Email != u.Email {
		t.Errorf("FindByID email = %q", byID.Email)
	}
}

func TestUserStoreUpdateProfile(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newUser(t, db, models.RoleUser)
	other := newUser(t, db, models.RoleUser)

	updated, err := s.UpdateProfile(ctx, u.ID, "Renamed", "renamed-"+unique()+"@store-test.local")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("name = %q", updated.Name)
	}

	if _, err := s.UpdateProfile(ctx, u.ID, "Renamed", other.Email); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	gone, err := s.UpdateProfile(ctx, uuid.New(), "X", "x-"+unique()+"@store-test.local")
	if err != nil || gone != nil {
		t.Errorf("UpdateProfile(unknown) = %v, %v; want nil, nil", gone, err)
	}
}

func TestUserStoreTOTP(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newUser(t, db, models.RoleUser)

	if err := s.SetTOTPSecret(ctx, u.ID, "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("SetTOTPSecret: %v", err)
	}
	if err := s.EnableTOTP(ctx, u.ID); err != nil {
		t.Fatalf("EnableTOTP: %v", err)
	}

	got, _ := s.FindByID(ctx, u.ID)
	if !got.TOTPEnabled || got.TOTPSecret == nil || *got.TOTPSecret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("totp state = %v / %v", got.TOTPEnabled, got.TOTPSecret)
	}

	if err := s.ResetTOTP(ctx, u.ID); err != nil {
		t.Fatalf("ResetTOTP: %v", err)
	}
	got, _ = s.FindByID(ctx, u.ID)
	if got.TOTPEnabled || got.TOTPSecret != nil {
		t.Error("ResetTOTP did not clear 2FA")
	}
}

// TestUserStoreDeleteKeepsForeignComments checks that removing a user
// deletes their posts but keeps their comments on other posts, with the
// author reference nulled and the name snapshot intact.
func TestUserStoreDeleteKeepsForeignComments(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	cat := newCategory(t, db)
	owner := newUser(t, db, models.RoleUser)
	leaving := newUser(t, db, models.RoleUser)

	ownersPost := newPost(t, db, owner, cat, "Stays")
	leavingPost := newPost(t, db, leaving, cat, "Goes")
	comment := newComment(t, db, ownersPost, leaving, nil)
	postMedia := newMedia(t, db, models.PostOwner(leavingPost.ID))

	media, err := s.Delete(ctx, leaving.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(media) != 1 || media[0].ID != postMedia.ID {
		t.Errorf("collected media = %+v, want the post's image", media)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM posts WHERE id = $1", leavingPost.ID); n != 0 {
		t.Errorf("user's post survived: %d", n)
	}

	kept, err := NewCommentStore(db).FindByID(ctx, comment.ID)
	if err != nil || kept == nil {
		t.Fatalf("comment on foreign post was removed: %v", err)
	}
	if kept.UserID != nil {
		t.Error("author reference should be nulled")
	}
	if kept.AuthorName == nil || *kept.AuthorName != leaving.Name {
		t.Errorf("author name snapshot = %v", kept.AuthorName)
	}
}

func TestUserStoreCountByRole(t *testing.T) {
	db := testDB(t)
	newUser(t, db, models.RoleModerator)

	counts, err := NewUserStore(db).CountByRole(context.Background())
	if err != nil {
		t.Fatalf("CountByRole: %v", err)
	}
	for _, r := range models.Roles {
		if _, ok := counts[r]; !ok {
			t.Errorf("missing count for %s", r)
		}
	}
	if counts[models.RoleModerator] < 1 {
		t.Error("expected at least one moderator")
	}
}

func TestUserStoreList(t *testing.T) {
	db := testDB(t)
	newUser(t, db, models.RoleUser)

	users, total, err := NewUserStore(db).List(context.Background(), models.PageQuery{Page: 1, PerPage: models.MaxPerPage})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total < 1 || len(users) == 0 {
		t.Fatalf("List returned %d users, total %d", len(users), total)
	}
	if int64(len(users)) > total {
		t.Errorf("page holds %d users but total is %d", len(users), total)
	}
}
