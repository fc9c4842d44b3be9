// Package resultcache caches search backend answers.
//
// Autocomplete results go to redis under keys.Key, so every replica shares
// them and dataset updates can drop them by pattern. Feature lookups stay in
// a small per-process LRU.
package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/backend"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache/keys"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/observability"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/mapper"
)

const (
	cacheResult  = "result"
	cacheFeature = "feature"
)

type Config struct {
	TTL              time.Duration
	H3Res            int
	FeatureCacheSize int
	FeatureCacheTTL  time.Duration
}

type Cache struct {
	next   backend.Searcher
	store  cache.Interface
	mapr   mapper.Interface
	logger *slog.Logger
	cfg    Config

	group    singleflight.Group
	features *expirable.LRU[string, []model.Place]
}

var _ backend.Searcher = (*Cache)(nil)

func New(next backend.Searcher, store cache.Interface, mapr mapper.Interface, logger *slog.Logger, cfg Config) *Cache {
	if cfg.FeatureCacheSize <= 0 {
		cfg.FeatureCacheSize = 4096
	}
	if cfg.FeatureCacheTTL <= 0 {
		cfg.FeatureCacheTTL = 5 * time.Minute
	}
	return &Cache{
		next:     next,
		store:    store,
		mapr:     mapr,
		logger:   logger,
		cfg:      cfg,
		features: expirable.NewLRU[string, []model.Place](cfg.FeatureCacheSize, nil, cfg.FeatureCacheTTL),
	}
}

// Key returns the redis key q is cached under.
func (c *Cache) Key(q model.CanonicalQuery) string {
	cell := ""
	if pt, ok := q.Bias.Point(); ok {
		var err error
		cell, err = c.mapr.CellForCoord(pt, c.cfg.H3Res)
		if err != nil {
			c.logger.Debug("h3 mapping failed, caching without cell", "coord", pt.String(), "err", err)
			cell = ""
		}
	}
	return keys.Key(q, cell)
}

func (c *Cache) Autocomplete(ctx context.Context, q model.CanonicalQuery) ([]model.Place, error) {
	key := c.Key(q)

	if got, err := c.store.MGet(ctx, []string{key}); err != nil {
		observability.IncCacheError(cacheResult)
		c.logger.WarnContext(ctx, "result cache read failed", "key", key, "err", err)
	} else if raw, ok := got[key]; ok {
		var places []model.Place
		if err := json.Unmarshal(raw, &places); err == nil {
			observability.IncCacheHit(cacheResult)
			return places, nil
		}
		c.logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key)
		if err := c.store.Del(ctx, key); err != nil {
			observability.IncCacheError(cacheResult)
			c.logger.WarnContext(ctx, "result cache delete failed", "key", key, "err", err)
		}
	}
	observability.IncCacheMiss(cacheResult)

	// identical concurrent misses share one backend call; a caller that goes
	// away does not cancel it for the others
	ch := c.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		places, err := c.next.Autocomplete(fctx, q)
		if err != nil {
			return nil, err
		}
		c.put(fctx, key, places)
		return places, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("autocomplete: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Place), nil
	}
}

func (c *Cache) put(ctx context.Context, key string, places []model.Place) {
	if places == nil {
		places = []model.Place{}
	}
	raw, err := json.Marshal(places)
	if err != nil {
		c.logger.WarnContext(ctx, "result cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, c.cfg.TTL); err != nil {
		observability.IncCacheError(cacheResult)
		c.logger.WarnContext(ctx, "result cache write failed", "key", key, "err", err)
	}
}

func (c *Cache) Feature(ctx context.Context, scope model.DatasetScope, id string) ([]model.Place, error) {
	key := keys.Feature(scope, id)
	if places, ok := c.features.Get(key); ok {
		observability.IncCacheHit(cacheFeature)
		return places, nil
	}
	observability.IncCacheMiss(cacheFeature)

	places, err := c.next.Feature(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	c.features.Add(key, places)
	return places, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// Invalidate drops cached results that may contain places of dataset.
//
// dataset "" is the shared partition every query reads, so all scopes go.
// Otherwise only that dataset and _all_data entries go. With cells, entries
// keyed by a point-bias cell outside them are kept until their TTL.
func (c *Cache) Invalidate(ctx context.Context, dataset string, cells model.Cells) (int, error) {
	var scopes []string
	if dataset == "" {
		scopes = []string{"*"}
	} else {
		scopes = []string{keys.DatasetSegment(dataset), keys.ScopeAll}
	}

	var patterns []string
	for _, s := range scopes {
		if len(cells) == 0 || s == keys.ScopeAll {
			patterns = append(patterns, keys.Pattern(s, "*"))
			continue
		}
		patterns = append(patterns, keys.Pattern(s, keys.NoCell))
		for _, cell := range cells {
			patterns = append(patterns, keys.Pattern(s, cell))
		}
	}

	c.features.Purge()

	total := 0
	for _, p := range patterns {
		n, err := c.store.DelMatch(ctx, p)
		total += n
		if err != nil {
			return total, fmt.Errorf("invalidate %q: %w", p, err)
		}
	}
	c.logger.InfoContext(ctx, "result cache invalidated",
		"dataset", dataset, "cells", len(cells), "patterns", len(patterns), "keys", total)
	return total, nil
}
