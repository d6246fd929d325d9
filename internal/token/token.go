// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package token signs and parses the bearer credentials handed to clients.
// A credential is an HS256 JWT carrying the principal's identity and role,
// an expiry, and a unique ID that the server-side ledger tracks so that a
// logout revokes the credential before it expires.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"inkpost/internal/models"
)

// ErrMalformed is returned when a credential cannot be decoded at all.
var ErrMalformed = errors.New("malformed credential")

// Claims is the JWT payload.
type Claims struct {
	UserID string      `json:"uid"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwtlib.RegisteredClaims
}

// Expired reports whether the credential's expiry is at or before now.
// Credentials without an expiry are treated as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

// TTL returns how long the credential remains valid after now.
func (c *Claims) TTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// Issuer signs and verifies credentials with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. ttl is the lifetime of every credential.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of credentials signed by this issuer.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Sign creates a signed credential for user and returns it along with its
// claims.
func (i *Issuer) Sign(user *models.User) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		UserID: user.ID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign credential: %w", err)
	}
	return signed, claims, nil
}

// Parse validates the signature and expiry of a credential and returns its
// claims.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	tok, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(i.now), jwtlib.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("invalid token: missing id")
	}
	return claims, nil
}

// Peek decodes a credential without verifying its signature. Clients use it
// to read the expiry and role of a credential they hold; the server never
// trusts its result.
func Peek(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
