// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"inkpost/internal/handlers"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/session"
	"inkpost/internal/token"
)

type memLedger map[string]*session.Data

func (l memLedger) Get(_ context.Context, id string) (*session.Data, error) {
	return l[id], nil
}

type memUsers map[uuid.UUID]*models.User

func (u memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return u[id], nil
}

type fixture struct {
	issuer *token.Issuer
	ledger memLedger
	users  memUsers
	deps   Deps
}

// newFixture wires the router with zero-value handler groups. Tests only
// exercise paths that middleware answers before a handler runs.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		issuer: token.NewIssuer("router-test-secret-router-test-secret", time.Hour),
		ledger: memLedger{},
		users:  memUsers{},
	}
	f.deps = Deps{
		Tokens: f.issuer,
		Ledger: f.ledger,
		Users:  f.users,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics"))
		}),
		AllowedOrigins: []string{"https://blog.example.com"},

		Auth:       &handlers.Auth{},
		Posts:      &handlers.Posts{},
		Comments:   &handlers.Comments{},
		Media:      &handlers.Media{},
		Categories: &handlers.Categories{},
		Tags:       &handlers.Tags{},
		Dashboard:  &handlers.Dashboard{},
		UserAdmin:  &handlers.Users{},
	}
	return f
}

// bearer returns a live credential for a new user with the given role.
func (f *fixture) bearer(t *testing.T, role models.Role) string {
	t.Helper()
	u := &models.User{ID: uuid.New(), Name: "Router", Email: "router@example.com", Role: role}
	f.users[u.ID] = u
	tok, claims, err := f.issuer.Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	f.ledger[claims.ID] = &session.Data{UserID: u.ID, Role: role}
	return tok
}

func (f *fixture) do(method, target, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	New(f.deps).ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("content-type: got %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestRouterGlobalMiddleware(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	rec = f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Errorf("GET /metrics: %d %q", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/no/such/route", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route: got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["message"] == "" {
		t.Errorf("404 body = %q", rec.Body.String())
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	New(f.deps).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://blog.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouterAccessControl(t *testing.T) {
	f := newFixture(t)
	user := f.bearer(t, models.RoleUser)
	moderator := f.bearer(t, models.RoleModerator)
	id := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"guest creates post", http.MethodPost, "/api/posts", "", http.StatusUnauthorized},
		{"guest edits post", http.MethodPut, "/api/posts/" + id, "", http.StatusUnauthorized},
		{"guest profile", http.MethodGet, "/api/auth/profile", "", http.StatusUnauthorized},
		{"guest logout", http.MethodPost, "/api/auth/logout", "", http.StatusUnauthorized},
		{"guest media list", http.MethodGet, "/api/media", "", http.StatusUnauthorized},
		{"guest dashboard", http.MethodGet, "/api/dashboard/posts", "", http.StatusUnauthorized},
		{"user moderates comment", http.MethodPut, "/api/comments/" + id, user, http.StatusForbidden},
		{"user deletes comment", http.MethodDelete, "/api/comments/" + id, user, http.StatusForbidden},
		{"user deletes media", http.MethodDelete, "/api/media/" + id, user, http.StatusForbidden},
		{"user stats", http.MethodGet, "/api/dashboard/stats", user, http.StatusForbidden},
		{"moderator creates category", http.MethodPost, "/api/categories", moderator, http.StatusForbidden},
		{"moderator lists users", http.MethodGet, "/api/users", moderator, http.StatusForbidden},
		{"moderator resets 2fa", http.MethodPost, "/api/users/" + id + "/reset-2fa", moderator, http.StatusForbidden},
		{"bad credential", http.MethodGet, "/api/posts", "not-a-token", http.StatusUnauthorized},
		{"guest media file reaches handler", http.MethodGet, "/api/media/not-an-id/file", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(tt.method, tt.path, tt.token); rec.Code != tt.want {
				t.Errorf("%s %s: got %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestRouterLoginRateLimit(t *testing.T) {
	f := newFixture(t)
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	f.deps.LoginLimiter = limiter

	// An empty body is rejected before the handler touches any store.
	if rec := f.do(http.MethodPost, "/api/auth/login", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("first attempt: got %d, want 400", rec.Code)
	}
	rec := f.do(http.MethodPost, "/api/auth/login", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestRouterServesLocalMedia(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "post"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "post", "a.txt"), []byte("blob"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.deps.MediaDir = dir
	f.deps.MediaPrefix = "/media"

	rec := f.do(http.MethodGet, "/media/post/a.txt", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "blob" {
		t.Errorf("GET /media/post/a.txt: %d %q", rec.Code, rec.Body.String())
	}
}
