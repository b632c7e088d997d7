// Package cache provides the keyed query cache shared by dashboard views.
//
// Query results are stored under structured keys (see Key) with a TTL.
// Consistency after mutations uses broad invalidation: Invalidate deletes
// every key containing a substring, so all finding-related queries go stale
// together and refetch on next access. This is deliberately blunt; the
// dashboard tolerates brief staleness and exact-key invalidation would not
// change observable behavior.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Common errors returned by cache operations.
var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("cache: invalid key")
)

// Options configures the Redis connection backing the cache.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// DefaultTTL is applied when Set is called with a zero TTL
	DefaultTTL time.Duration
}

// Cache is a Redis-backed query cache with substring invalidation.
type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// New creates a cache client with the given options and verifies
// connectivity with a ping.
func New(opts Options) (*Cache, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = 5 * time.Minute
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, defaultTTL: opts.DefaultTTL}, nil
}

// Client exposes the underlying redis client for health checks.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Get retrieves the value stored under key and unmarshals it into dest.
// Returns ErrNotFound if the key is absent or expired.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value for %s: %w", key, err)
	}
	return nil
}

// Set stores value under key with the given TTL. A zero TTL uses the
// cache's default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a single key. Deleting an absent key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes every key whose name contains substr. Keys are walked
// with SCAN to avoid blocking the server on large keyspaces. Returns the
// number of keys deleted.
func (c *Cache) Invalidate(ctx context.Context, substr string) (int, error) {
	if substr == "" {
		return 0, ErrInvalidKey
	}

	var deleted int
	iter := c.client.Scan(ctx, 0, "*"+substr+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan keys matching %q: %w", substr, err)
	}
	return deleted, nil
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key builds a structured cache key from parts, e.g.
// Key("tenant", "acme", "findings", "list") -> "tenant:acme:findings:list".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// FindingsKey builds a tenant-scoped key for a findings query. The query
// string carries the serialized filter so distinct filters cache separately.
func FindingsKey(tenantID, query string) string {
	if query == "" {
		return Key("tenant", tenantID, "findings")
	}
	return Key("tenant", tenantID, "findings", query)
}

// AssetsKey builds a tenant-scoped key for an assets query.
func AssetsKey(tenantID, query string) string {
	if query == "" {
		return Key("tenant", tenantID, "assets")
	}
	return Key("tenant", tenantID, "assets", query)
}
