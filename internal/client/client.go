// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package client talks to the inkpost API. Client is the transport: it
// attaches the stored credential and maps failed responses onto the error
// classes in errors.go. Resolver owns the session state machine on top of
// it. Nothing here is global; callers construct both explicitly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds every request made with the default HTTP client.
const DefaultTimeout = 10 * time.Second

// Client sends JSON requests to the API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  Store

	mu             sync.Mutex
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API at baseURL that reads its credential
// from tokens.
func New(baseURL string, tokens Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the credential store.
func (c *Client) Tokens() Store { return c.tokens }

// setUnauthorizedHook installs the callback run after a 401 has cleared
// the stored credential.
func (c *Client) setUnauthorizedHook(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// call describes one request.
type call struct {
	method string
	path   string
	body   io.Reader
	ctype  string
	out    any
	// keepOn401 skips the forced invalidation a 401 normally triggers.
	// Login and registration answer 401 for bad input, not for a dead
	// credential.
	keepOn401 bool
}

// do sends in as JSON and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	cl := call{method: method, path: path, out: out}
	if in != nil {
		body, err := jsonBody(in)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		cl.body, cl.ctype = body, "application/json"
	}
	return c.send(ctx, cl)
}

func jsonBody(in any) (io.Reader, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(payload), nil
}

func (c *Client) send(ctx context.Context, cl call) error {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", cl.method, cl.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.ctype != "" {
		req.Header.Set("Content-Type", cl.ctype)
	}
	if credential, ok := c.tokens.Load(); ok {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if cl.out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, cl.out); err != nil {
			return fmt.Errorf("decode %s %s: %w", cl.method, cl.path, err)
		}
		return nil
	}

	apiErr := responseError(resp.StatusCode, body)
	if resp.StatusCode == http.StatusUnauthorized && !cl.keepOn401 {
		c.invalidate()
	}
	return apiErr
}

// invalidate drops the stored credential and tells the resolver.
func (c *Client) invalidate() {
	if err := c.tokens.Clear(); err != nil {
		slog.Warn("failed to clear rejected credential", "error", err)
	}
	c.mu.Lock()
	fn := c.onUnauthorized
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// errorBody is the JSON envelope of a failed response.
type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func responseError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	if status == http.StatusUnprocessableEntity {
		return &ValidationError{Message: eb.Message, Fields: eb.Errors}
	}

	apiErr := &APIError{Status: status, Message: eb.Message}
	switch {
	case status == http.StatusUnauthorized:
		apiErr.Err = ErrUnauthenticated
	case status == http.StatusForbidden:
		apiErr.Err = ErrForbidden
	case status == http.StatusNotFound:
		apiErr.Err = ErrNotFound
	case status >= http.StatusInternalServerError:
		apiErr.Err = ErrServer
	}
	return apiErr
}

// IsValidation returns the field errors of err, if it is a 422.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
