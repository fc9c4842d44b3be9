// Package cache defines the byte-level store used by the autocomplete result cache.
package cache

import (
	"context"
	"fmt"
	"time"
)

type Interface interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelMatch(ctx context.Context, pattern string) (int, error)
}

type adapter struct {
	next    Interface
	timeout time.Duration
}

// WithOpTimeout bounds every store call by timeout so a slow redis cannot
// hold a request longer than the backend would.
func WithOpTimeout(next Interface, timeout time.Duration) Interface {
	return &adapter{next: next, timeout: timeout}
}

// returns context with timeout if set
func (a *adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *adapter) MGet(ctx context.Context, ks []string) (map[string][]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	m, err := a.next.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	return m, nil
}

func (a *adapter) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.next.Set(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (a *adapter) Del(ctx context.Context, ks ...string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.next.Del(ctx, ks...); err != nil {
		return fmt.Errorf("cache del %d keys: %w", len(ks), err)
	}
	return nil
}

// DelMatch is not bounded by the op timeout; a full scan of a large
// keyspace legitimately takes longer than a single read.
func (a *adapter) DelMatch(ctx context.Context, pattern string) (int, error) {
	n, err := a.next.DelMatch(ctx, pattern)
	if err != nil {
		return n, fmt.Errorf("cache delmatch %q: %w", pattern, err)
	}
	return n, nil
}
