// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// listing.go caches the JSON bodies of public post listings in Valkey.
// Only responses computed for anonymous or non-staff callers are cached,
// since staff see drafts. Every key embeds the current generation; a post
// mutation bumps it, so older bodies are never read again and age out
// through their TTL.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// listingKeyPrefix is the Valkey key prefix for cached listings.
	listingKeyPrefix = "listing:"

	// listingGenKey holds the current listing generation.
	listingGenKey = listingKeyPrefix + "gen"

	// DefaultListingTTL is how long a listing body stays cached.
	DefaultListingTTL = time.Minute
)

// ListingCache stores rendered listing responses.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a listing cache backed by the given Valkey client.
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	if ttl == 0 {
		ttl = DefaultListingTTL
	}
	return &ListingCache{client: client, ttl: ttl}
}

// Generation identifies the cache state a listing was computed against.
// A negative value means the generation could not be read; Set ignores it.
type Generation int64

func (lc *ListingCache) generation(ctx context.Context) Generation {
	gen, err := lc.client.Get(ctx, listingGenKey).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		slog.Warn("listing cache generation error", "error", err)
		return -1
	}
	return Generation(gen)
}

func entryKey(gen Generation, key string) string {
	return fmt.Sprintf("%s%d:%s", listingKeyPrefix, gen, key)
}

// Get returns the cached body for key and whether it was found. On a miss
// the caller builds the body and hands the returned generation to Set.
// The generation is read before the caller touches the database, so a
// body built across an invalidation is stored under a retired generation.
func (lc *ListingCache) Get(ctx context.Context, key string) ([]byte, Generation, bool) {
	gen := lc.generation(ctx)
	if gen < 0 {
		return nil, gen, false
	}
	val, err := lc.client.Get(ctx, entryKey(gen, key)).Bytes()
	if err == redis.Nil {
		return nil, gen, false
	}
	if err != nil {
		slog.Warn("listing cache get error", "key", key, "error", err)
		return nil, gen, false
	}
	return val, gen, true
}

// Set stores a listing body under key for generation gen.
func (lc *ListingCache) Set(ctx context.Context, gen Generation, key string, body []byte) {
	if gen < 0 {
		return
	}
	if err := lc.client.Set(ctx, entryKey(gen, key), body, lc.ttl).Err(); err != nil {
		slog.Warn("listing cache set error", "key", key, "error", err)
	}
}

// InvalidateAll retires every cached listing by moving to a new generation.
func (lc *ListingCache) InvalidateAll(ctx context.Context) {
	gen, err := lc.client.Incr(ctx, listingGenKey).Result()
	if err != nil {
		slog.Warn("listing cache invalidate error", "error", err)
		return
	}
	slog.Debug("listing cache invalidated", "generation", gen)
}

// ListingKey builds a cache key from a listing route and its query. The
// query is re-encoded so that parameter order does not split the cache.
func ListingKey(route string, query url.Values) string {
	return fmt.Sprintf("%s?%s", route, query.Encode())
}
