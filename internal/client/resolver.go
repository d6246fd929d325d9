// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"inkpost/internal/authz"
	"inkpost/internal/models"
	"inkpost/internal/token"
)

// State is a snapshot of the session. Principal is set only while Status
// is authz.StatusResolved.
type State struct {
	Status    authz.Status
	Principal *models.User
}

// RegisterRequest is the body of a registration.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
}

type authResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type profileResponse struct {
	User *models.User `json:"user"`
}

// Resolver turns the stored credential into the current principal and
// owns every change to it. Changes are serialized: a second login, logout,
// registration or refresh while one is running fails with ErrBusy.
type Resolver struct {
	client *Client
	tokens Store
	now    func() time.Time

	busy sync.Mutex

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
	closed  bool
}

// NewResolver creates a resolver in the pending state. Call Init to
// resolve the stored credential.
func NewResolver(c *Client) *Resolver {
	r := &Resolver{
		client: c,
		tokens: c.tokens,
		now:    time.Now,
		state:  State{Status: authz.StatusPending},
		subs:   make(map[int]func(State)),
	}
	c.setUnauthorizedHook(r.invalidate)
	return r
}

// State returns the current session state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn to be called with the new state after every
// change. The returned function removes the subscription.
func (r *Resolver) Subscribe(fn func(State)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Guard decides whether the current principal may see requested.
func (r *Resolver) Guard(required []models.Role, requested string) authz.Decision {
	st := r.State()
	return authz.Guard(st.Status, st.Principal, required, requested)
}

// Close detaches the resolver from its client and drops all subscribers.
// Further session changes fail with ErrClosed.
func (r *Resolver) Close() {
	r.client.setUnauthorizedHook(nil)
	r.mu.Lock()
	r.closed = true
	r.subs = make(map[int]func(State))
	r.mu.Unlock()
	r.client.http.CloseIdleConnections()
}

// begin takes the mutation lock without waiting.
func (r *Resolver) begin() error {
	if !r.busy.TryLock() {
		return ErrBusy
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		r.busy.Unlock()
		return ErrClosed
	}
	return nil
}

func (r *Resolver) end() { r.busy.Unlock() }

// canMove reports whether the state machine permits from → to.
func canMove(from, to authz.Status) bool {
	switch from {
	case authz.StatusPending:
		return to == authz.StatusResolved || to == authz.StatusUnauthenticated
	case authz.StatusResolved:
		return to == authz.StatusUnauthenticated
	case authz.StatusUnauthenticated:
		return to == authz.StatusResolved
	default:
		return false
	}
}

// transition moves to next and notifies subscribers.
func (r *Resolver) transition(next State) error {
	r.mu.Lock()
	if !canMove(r.state.Status, next.Status) {
		from := r.state.Status
		r.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, next.Status)
	}
	r.state = next
	subs := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(subs, next)
	return nil
}

func (r *Resolver) snapshotLocked() []func(State) {
	subs := make([]func(State), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (r *Resolver) notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}

// invalidate runs after the transport saw a 401. Only a resolved session
// moves; a pending one is settled by Init itself.
func (r *Resolver) invalidate() {
	r.mu.Lock()
	if r.state.Status != authz.StatusResolved {
		r.mu.Unlock()
		return
	}
	r.state = State{Status: authz.StatusUnauthenticated}
	subs := r.snapshotLocked()
	r.mu.Unlock()

	slog.Info("session invalidated by the server")
	r.notify(subs, State{Status: authz.StatusUnauthenticated})
}

// usable reports whether credential can be presented: it decodes and has
// not expired. The signature is the server's business.
func (r *Resolver) usable(credential string) bool {
	claims, err := token.Peek(credential)
	if err != nil {
		return false
	}
	return !claims.Expired(r.now())
}

// Init resolves the stored credential. An absent, malformed or expired
// credential settles the session as unauthenticated without a request.
// Otherwise the profile is fetched; any failure clears the credential and
// settles as unauthenticated, and the failure is returned for logging.
func (r *Resolver) Init(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.end()

	if r.State().Status != authz.StatusPending {
		return fmt.Errorf("%w: already initialized", ErrInvalidTransition)
	}

	credential, ok := r.tokens.Load()
	if !ok || !r.usable(credential) {
		if ok {
			r.clearTokens()
		}
		return r.transition(State{Status: authz.StatusUnauthenticated})
	}

	var resp profileResponse
	err := r.client.do(ctx, http.MethodGet, "/api/auth/profile", nil, &resp)
	if err == nil && resp.User == nil {
		err = errors.New("profile response without user")
	}
	if err != nil {
		r.clearTokens()
		if terr := r.transition(State{Status: authz.StatusUnauthenticated}); terr != nil {
			return terr
		}
		return fmt.Errorf("resolve session: %w", err)
	}
	return r.transition(State{Status: authz.StatusResolved, Principal: resp.User})
}

// Login authenticates with email and password. Failures come back as
// *LoginError and leave the stored credential and state untouched.
func (r *Resolver) Login(ctx context.Context, email, password string) (*models.User, error) {
	return r.authenticate(ctx, "/api/auth/login", loginRequest{Email: email, Password: password}, true)
}

// LoginOTP is Login for accounts with two-factor authentication enabled.
func (r *Resolver) LoginOTP(ctx context.Context, email, password, otp string) (*models.User, error) {
	return r.authenticate(ctx, "/api/auth/login", loginRequest{Email: email, Password: password, OTP: otp}, true)
}

// Register creates an account and signs it in.
func (r *Resolver) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	return r.authenticate(ctx, "/api/auth/register", req, false)
}

func (r *Resolver) authenticate(ctx context.Context, path string, in any, login bool) (*models.User, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	if st := r.State().Status; !canMove(st, authz.StatusResolved) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, st, authz.StatusResolved)
	}

	var resp authResponse
	cl := call{method: http.MethodPost, path: path, out: &resp, keepOn401: true}
	payload, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	cl.body, cl.ctype = payload, "application/json"

	if err := r.client.send(ctx, cl); err != nil {
		if login {
			return nil, loginError(err)
		}
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, fmt.Errorf("%s: incomplete response", path)
	}
	if err := r.tokens.Save(resp.Token); err != nil {
		return nil, err
	}
	if err := r.transition(State{Status: authz.StatusResolved, Principal: resp.User}); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Logout ends the session. The credential is revoked on the server when
// possible; a failure there is logged, and the local state is reset
// regardless.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.end()

	if _, ok := r.tokens.Load(); ok {
		err := r.client.send(ctx, call{method: http.MethodPost, path: "/api/auth/logout", keepOn401: true})
		if err != nil {
			slog.Warn("logout request failed", "error", err)
		}
	}
	r.clearTokens()

	if r.State().Status == authz.StatusUnauthenticated {
		return nil
	}
	return r.transition(State{Status: authz.StatusUnauthenticated})
}

// Refresh exchanges the current credential for a fresh one. The principal
// is updated from the response; the status stays resolved.
func (r *Resolver) Refresh(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.end()

	if r.State().Status != authz.StatusResolved {
		return ErrUnauthenticated
	}

	var resp authResponse
	if err := r.client.do(ctx, http.MethodPost, "/api/auth/refresh", nil, &resp); err != nil {
		return err
	}
	if resp.Token == "" || resp.User == nil {
		return errors.New("refresh: incomplete response")
	}
	if err := r.tokens.Save(resp.Token); err != nil {
		return err
	}

	r.mu.Lock()
	if r.state.Status != authz.StatusResolved {
		r.mu.Unlock()
		return ErrUnauthenticated
	}
	r.state.Principal = resp.User
	st := r.state
	subs := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(subs, st)
	return nil
}

func (r *Resolver) clearTokens() {
	if err := r.tokens.Clear(); err != nil {
		slog.Warn("failed to clear stored credential", "error", err)
	}
}
