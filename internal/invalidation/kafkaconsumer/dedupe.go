package kafkaconsumer

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/invalidation"
)

// versionDedupe remembers the newest ts applied per event target so a
// redelivered event is not applied twice.
type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, int64](size)
	return &versionDedupe{lru: c}
}

func dedupeKey(ev invalidation.Event) string {
	if bb := ev.BBox; bb != nil {
		return fmt.Sprintf("%s|%g,%g,%g,%g", ev.Dataset, bb.X1, bb.Y1, bb.X2, bb.Y2)
	}
	return ev.Dataset + "|*"
}

// seen reports whether an event at least as new as v was already applied
func (d *versionDedupe) seen(key string, v int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(key)
	return ok && v <= last
}

func (d *versionDedupe) record(key string, v int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && last >= v {
		return
	}
	d.lru.Add(key, v)
}
