// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package session keeps the server-side ledger of live bearer credentials.
// Every credential the API hands out is recorded in Valkey under its ID
// with a TTL matching the credential's expiry. A credential whose entry is
// missing is rejected even if its signature and expiry are still valid,
// which is how logout revokes it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"inkpost/internal/models"
)

const (
	// keyPrefix namespaces credential entries in Valkey.
	keyPrefix = "session:"

	// userPrefix holds the set of live credential IDs per user.
	userPrefix = "session:user:"
)

// Data is the ledger entry for one credential.
type Data struct {
	UserID    uuid.UUID   `json:"user_id"`
	Role      models.Role `json:"role"`
	IP        string      `json:"ip,omitempty"`
	UserAgent string      `json:"user_agent,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store manages the credential ledger in Valkey.
type Store struct {
	client *redis.Client
}

// NewStore creates a ledger backed by the given Valkey client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Create records credential id as live for ttl.
func (s *Store) Create(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	if id == "" {
		return errors.New("session create: empty credential id")
	}
	if ttl <= 0 {
		return errors.New("session create: non-positive ttl")
	}

	data.CreatedAt = time.Now()
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}

	userKey := userPrefix + data.UserID.String()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+id, payload, ttl)
	pipe.SAdd(ctx, userKey, id)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

// Get returns the ledger entry for id, or nil if the credential was
// revoked or has expired.
func (s *Store) Get(ctx context.Context, id string) (*Data, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return &data, nil
}

// Revoke removes a single credential from the ledger. Revoking an unknown
// credential is not an error.
func (s *Store) Revoke(ctx context.Context, id string) error {
	data, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keyPrefix+id)
	if data != nil {
		pipe.SRem(ctx, userPrefix+data.UserID.String(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session revoke: %w", err)
	}
	return nil
}

// RevokeUser removes every live credential of a user, except keep when it
// is non-empty. Used after a password change.
func (s *Store) RevokeUser(ctx context.Context, userID uuid.UUID, keep string) (int, error) {
	userKey := userPrefix + userID.String()
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("session list: %w", err)
	}

	var keys []string
	var members []any
	for _, id := range ids {
		if id == keep {
			continue
		}
		keys = append(keys, keyPrefix+id)
		members = append(members, id)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, userKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("session revoke user: %w", err)
	}
	return len(keys), nil
}
