package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"inkpost/internal/models"
	"inkpost/internal/token"
)

// fakeAPI is an in-process stand-in for the auth endpoints.
type fakeAPI struct {
	t      *testing.T
	issuer *token.Issuer
	srv    *httptest.Server

	mu      sync.Mutex
	users   map[string]*models.User // by email
	otp     map[string]string       // email -> required code
	live    map[string]*models.User // credential -> user
	calls   atomic.Int64
	logouts atomic.Int64

	// failLogout makes the logout endpoint answer 500.
	failLogout atomic.Bool
	// gate, when set, blocks login until it is closed; entered is
	// signalled once the request arrives.
	gate    chan struct{}
	entered chan struct{}
	// override answers every non-auth route when set.
	override http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:      t,
		issuer: token.NewIssuer("client-test-secret-client-test-secret", time.Hour),
		users:  map[string]*models.User{},
		otp:    map[string]string{},
		live:   map[string]*models.User{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/register", f.register)
	mux.HandleFunc("POST /api/auth/logout", f.logout)
	mux.HandleFunc("POST /api/auth/refresh", f.refresh)
	mux.HandleFunc("GET /api/auth/profile", f.profileHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		override := f.override
		f.mu.Unlock()
		if override != nil {
			override(w, r)
			return
		}
		writeTestJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
	})

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) addUser(email string, role models.Role) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: uuid.New(), Name: "Test " + string(role), Email: email, Role: role}
	f.users[email] = u
	return u
}

func (f *fakeAPI) requireOTP(email, code string) {
	f.mu.Lock()
	f.otp[email] = code
	f.mu.Unlock()
}

// hold makes logins block until the returned release is called. entered
// receives once per login that reached the server.
func (f *fakeAPI) hold() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	in := make(chan struct{}, 1)
	f.mu.Lock()
	f.gate, f.entered = gate, in
	f.mu.Unlock()
	return in, func() { close(gate) }
}

func (f *fakeAPI) setOverride(h http.HandlerFunc) {
	f.mu.Lock()
	f.override = h
	f.mu.Unlock()
}

// credential signs and records a live credential for u.
func (f *fakeAPI) credential(u *models.User) string {
	tok, _, err := f.issuer.Sign(u)
	if err != nil {
		f.t.Fatalf("sign: %v", err)
	}
	f.mu.Lock()
	f.live[tok] = u
	f.mu.Unlock()
	return tok
}

func (f *fakeAPI) principal(r *http.Request) *models.User {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[tok]
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) issue(w http.ResponseWriter, status int, u *models.User) {
	writeTestJSON(w, status, map[string]any{"token": f.credential(u), "token_type": "Bearer", "user": u})
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	var in loginRequest
	json.NewDecoder(r.Body).Decode(&in)

	f.mu.Lock()
	u := f.users[in.Email]
	code := f.otp[in.Email]
	f.mu.Unlock()

	if u == nil || in.Password != "password" {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password."})
		return
	}
	if code != "" && in.OTP != code {
		writeTestJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "A valid one-time code is required.",
			"errors":  map[string][]string{"otp": {"A valid one-time code is required."}},
		})
		return
	}
	f.issue(w, http.StatusOK, u)
}

func (f *fakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterRequest
	json.NewDecoder(r.Body).Decode(&in)
	if in.Password != in.PasswordConfirmation {
		writeTestJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The password confirmation does not match.",
			"errors":  map[string][]string{"password": {"The password confirmation does not match."}},
		})
		return
	}
	u := f.addUser(in.Email, models.RoleUser)
	f.issue(w, http.StatusCreated, u)
}

func (f *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	f.logouts.Add(1)
	if f.failLogout.Load() {
		writeTestJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error."})
		return
	}
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	delete(f.live, tok)
	f.mu.Unlock()
	writeTestJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	u := f.principal(r)
	if u == nil {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	f.issue(w, http.StatusOK, u)
}

func (f *fakeAPI) profileHandler(w http.ResponseWriter, r *http.Request) {
	u := f.principal(r)
	if u == nil {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	writeTestJSON(w, http.StatusOK, map[string]any{"user": u})
}

// newSession returns a resolver over a fresh memory store.
func (f *fakeAPI) newSession() (*Resolver, *Client, *MemoryStore) {
	tokens := NewMemoryStore()
	c := New(f.srv.URL, tokens)
	r := NewResolver(c)
	f.t.Cleanup(r.Close)
	return r, c, tokens
}
