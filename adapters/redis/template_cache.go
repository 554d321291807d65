package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "medical_transcription"
)

// TemplateCache keeps the transcription service's template catalog in Redis
type TemplateCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Ensure TemplateCache implements the TemplateCache interface
var _ repositories.TemplateCache = (*TemplateCache)(nil)

// Option configures a TemplateCache.
type Option func(*TemplateCache)

// WithTTL sets how long a catalog stays cached. Default is 5 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(c *TemplateCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPrefix sets the key prefix. Default is "medical_transcription".
func WithPrefix(prefix string) Option {
	return func(c *TemplateCache) {
		c.prefix = prefix
	}
}

// NewTemplateCache creates a Redis-backed template cache
func NewTemplateCache(client *redis.Client, opts ...Option) *TemplateCache {
	cache := &TemplateCache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// NewClientFromURL parses a redis:// URL into a client
func NewClientFromURL(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *TemplateCache) key() string {
	return c.prefix + ":templates"
}

// Get returns the cached catalog; ok is false on a miss
func (c *TemplateCache) Get(ctx context.Context) (domain.Result, bool, error) {
	data, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read template cache: %w", err)
	}

	var catalog domain.Result
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached templates: %w", err)
	}
	return catalog, true, nil
}

// Set stores a catalog for the configured TTL
func (c *TemplateCache) Set(ctx context.Context, catalog domain.Result) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	if err := c.client.Set(ctx, c.key(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write template cache: %w", err)
	}
	return nil
}
