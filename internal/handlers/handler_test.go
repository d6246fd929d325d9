// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"inkpost/internal/cache"
	"inkpost/internal/database"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/session"
	"inkpost/internal/storage"
	"inkpost/internal/store"
	"inkpost/internal/token"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "inkpost")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "inkpost")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       14, // apart from the cache package tests on 15
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"session:*", "listing:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB         *sql.DB
	Users      *store.UserStore
	PostStore  *store.PostStore
	Categories *store.CategoryStore
	TagStore   *store.TagStore
	MediaStore *store.MediaStore
	Ledger     *session.Store
	Issuer     *token.Issuer
	Disks      *storage.Disks
	Local      *storage.Local

	Auth        *Auth
	Posts       *Posts
	Comments    *Comments
	Media       *Media
	CategoryAPI *Categories
	TagAPI      *Tags
	Dashboard   *Dashboard
	UserAPI     *Users
}

// newTestEnv creates a complete test environment with all handler dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	local, err := storage.NewLocal(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}
	disks, err := storage.NewDisks(models.DiskLocal, map[models.Disk]storage.Backend{models.DiskLocal: local})
	if err != nil {
		t.Fatalf("storage.NewDisks: %v", err)
	}

	env := &testEnv{
		DB:         db,
		Users:      store.NewUserStore(db),
		PostStore:  store.NewPostStore(db),
		Categories: store.NewCategoryStore(db),
		TagStore:   store.NewTagStore(db),
		MediaStore: store.NewMediaStore(db),
		Ledger:     session.NewStore(vk),
		Issuer:     token.NewIssuer("handler-test-secret-handler-test-secret", time.Hour),
		Disks:      disks,
		Local:      local,
	}
	comments := store.NewCommentStore(db)
	listings := cache.NewListingCache(vk, time.Minute)

	env.Auth = NewAuth(env.Users, env.Ledger, env.Issuer, nil)
	env.Posts = NewPosts(env.PostStore, env.Categories, env.TagStore, env.MediaStore, disks, listings, nil)
	env.Comments = NewComments(comments, env.PostStore, disks)
	env.Media = NewMedia(env.MediaStore, env.PostStore, disks, nil, 1<<20)
	env.CategoryAPI = NewCategories(env.Categories)
	env.TagAPI = NewTags(env.TagStore)
	env.Dashboard = NewDashboard(env.PostStore, comments, env.Users, env.MediaStore)
	env.UserAPI = NewUsers(env.Users, env.Ledger, disks)
	return env
}

func unique() string {
	return uuid.NewString()[:8]
}

// newUser creates a throwaway account with password "password1".
func (e *testEnv) newUser(t *testing.T, role models.Role) *models.User {
	t.Helper()
	u, err := e.Users.Create(context.Background(), "Handler "+string(role),
		"handler-"+unique()+"@handler-test.local", "password1", role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() { e.DB.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// newCategory creates a throwaway category. Create it before the posts
// that use it so its cleanup runs after theirs.
func (e *testEnv) newCategory(t *testing.T) *models.Category {
	t.Helper()
	c, err := e.Categories.Create(context.Background(), &models.Category{
		Name: "Handler fixture",
		Slug: "handler-cat-" + unique(),
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	t.Cleanup(func() { e.DB.Exec("DELETE FROM categories WHERE id = $1", c.ID) })
	return c
}

// newPost stores a post directly, bypassing the handlers.
func (e *testEnv) newPost(t *testing.T, author *models.User, cat *models.Category, status models.PostStatus) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:      "Fixture " + unique(),
		Slug:       "handler-post-" + unique(),
		Content:    "Fixture body",
		AuthorID:   author.ID,
		CategoryID: cat.ID,
		ReadTime:   1,
	}
	p.ApplyStatus(status, time.Now())
	created, err := e.PostStore.Create(context.Background(), p, true)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	t.Cleanup(func() { e.DB.Exec("DELETE FROM posts WHERE id = $1", created.ID) })
	return created
}

// as attaches a freshly issued, ledger-recorded credential for user to r.
func (e *testEnv) as(t *testing.T, r *http.Request, user *models.User) *http.Request {
	t.Helper()
	_, claims, err := e.Issuer.Sign(user)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	err = e.Ledger.Create(r.Context(), claims.ID, &session.Data{UserID: user.ID, Role: user.Role}, time.Hour)
	if err != nil {
		t.Fatalf("ledger create: %v", err)
	}
	return r.WithContext(middleware.WithPrincipal(r.Context(), &middleware.Principal{User: user, Claims: claims}))
}

// jsonRequest builds a request with v encoded as the JSON body.
func jsonRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&body).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeData unmarshals the "data" member of a response into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
}

// fieldErrorsOf returns the field errors of a 422 response.
func fieldErrorsOf(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Errors
}
