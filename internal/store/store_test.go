// store_test.go provides a shared test database helper and fixtures for
// all store integration tests. Tests are skipped if PostgreSQL is not
// available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"inkpost/internal/database"
	"inkpost/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "inkpost")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "inkpost")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// unique returns a short random suffix for fixture names.
func unique() string {
	return uuid.NewString()[:8]
}

// newUser creates a throwaway user that is removed when the test ends.
func newUser(t *testing.T, db *sql.DB, role models.Role) *models.User {
	t.Helper()
	email := "store-" + unique() + "@store-test.local"
	u, err := NewUserStore(db).Create(context.Background(), "Fixture "+string(role), email, "password", role)
	if err != nil {
		t.Fatalf("create fixture user: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// newCategory creates a throwaway category. Create it before the posts
// that use it so its cleanup runs after theirs.
func newCategory(t *testing.T, db *sql.DB) *models.Category {
	t.Helper()
	c, err := NewCategoryStore(db).Create(context.Background(), &models.Category{
		Name: "Fixture",
		Slug: "store-cat-" + unique(),
	})
	if err != nil {
		t.Fatalf("create fixture category: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM categories WHERE id = $1", c.ID) })
	return c
}

// newPost creates a published post owned by author in cat.
func newPost(t *testing.T, db *sql.DB, author *models.User, cat *models.Category, title string) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:      title,
		Slug:       "store-post-" + unique(),
		Content:    "body of " + title,
		AuthorID:   author.ID,
		CategoryID: cat.ID,
		ReadTime:   1,
	}
	p.ApplyStatus(models.PostStatusPublished, time.Now())
	created, err := NewPostStore(db).Create(context.Background(), p, true)
	if err != nil {
		t.Fatalf("create fixture post: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM posts WHERE id = $1", created.ID) })
	return created
}

// newComment creates an approved comment by author on post.
func newComment(t *testing.T, db *sql.DB, post *models.Post, author *models.User, parent *uuid.UUID) *models.Comment {
	t.Helper()
	name, email := author.Name, author.Email
	c, err := NewCommentStore(db).Create(context.Background(), &models.Comment{
		PostID:      post.ID,
		UserID:      &author.ID,
		ParentID:    parent,
		AuthorName:  &name,
		AuthorEmail: &email,
		Content:     "comment " + unique(),
		Status:      models.CommentApproved,
	})
	if err != nil {
		t.Fatalf("create fixture comment: %v", err)
	}
	return c
}

// newMedia attaches a media row to owner.
func newMedia(t *testing.T, db *sql.DB, owner models.Owner) *models.Media {
	t.Helper()
	name := unique() + ".png"
	m, err := NewMediaStore(db).Create(context.Background(), &models.Media{
		Name:     name,
		FileName: name,
		MimeType: "image/png",
		Path:     "test/" + name,
		Disk:     models.DiskLocal,
		Size:     128,
		Owner:    owner,
	})
	if err != nil {
		t.Fatalf("create fixture media: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM media WHERE id = $1", m.ID) })
	return m
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
