// Package cache provides the reply cache backends for the EV assistant.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spherical-ai/ev-assistant/internal/config"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// New builds the client selected by cfg. The "none" driver returns a client
// that never stores anything.
func New(cfg config.CacheConfig) (Client, error) {
	switch cfg.Driver {
	case "", "none":
		return NopClient{}, nil
	case "memory":
		return NewMemoryClient(cfg.MaxEntries), nil
	case "redis":
		return NewRedisClient(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// NopClient is a Client that always misses.
type NopClient struct{}

func (NopClient) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (NopClient) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopClient) Delete(context.Context, string) error { return nil }
func (NopClient) DeleteByPrefix(context.Context, string) error { return nil }
func (NopClient) Close() error { return nil }

// CacheKey generates a cache key from components.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
