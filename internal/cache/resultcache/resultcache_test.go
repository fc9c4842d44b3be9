package resultcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache/keys"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	h3mapper "github.com/mohammed-shakir/autocomplete-gateway/internal/mapper/h3"
)

type fakeSearcher struct {
	mu       sync.Mutex
	calls    atomic.Int32
	features atomic.Int32
	release  chan struct{}
	err      error
	places   []model.Place
}

func (f *fakeSearcher) Autocomplete(ctx context.Context, q model.CanonicalQuery) ([]model.Place, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Place(nil), f.places...), nil
}

func (f *fakeSearcher) Feature(_ context.Context, _ model.DatasetScope, id string) ([]model.Place, error) {
	f.features.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []model.Place{{ID: id}}, nil
}

func (f *fakeSearcher) Ping(context.Context) error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func strptr(s string) *string { return &s }

func newCache(t *testing.T, next *fakeSearcher) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	c := New(next, cache.WithOpTimeout(rc, 250*time.Millisecond), h3mapper.New(), discard(), Config{
		TTL:   time.Minute,
		H3Res: 7,
	})
	return c, mr
}

func TestAutocomplete_MissThenHit(t *testing.T) {
	next := &fakeSearcher{places: []model.Place{{ID: "admin:paris", Label: "Paris", Coord: model.Coordinate{Lon: 2.35, Lat: 48.85}}}}
	c, mr := newCache(t, next)
	q := model.CanonicalQuery{Text: "par", Page: model.Pagination{Limit: 10}}

	for range 3 {
		out, err := c.Autocomplete(context.Background(), q)
		if err != nil {
			t.Fatalf("Autocomplete: %v", err)
		}
		if len(out) != 1 || out[0].ID != "admin:paris" || out[0].Coord.Lat != 48.85 {
			t.Fatalf("out=%+v", out)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("backend calls=%d want 1", n)
	}
	if !mr.Exists(c.Key(q)) {
		t.Fatalf("key %s not stored", c.Key(q))
	}
	if ttl := mr.TTL(c.Key(q)); ttl != time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}
}

func TestAutocomplete_EmptyResultIsCached(t *testing.T) {
	next := &fakeSearcher{}
	c, mr := newCache(t, next)
	q := model.CanonicalQuery{Text: "zzz", Page: model.Pagination{Limit: 10}}

	for range 2 {
		out, err := c.Autocomplete(context.Background(), q)
		if err != nil || len(out) != 0 {
			t.Fatalf("out=%v err=%v", out, err)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("backend calls=%d want 1", n)
	}
	if v, _ := mr.Get(c.Key(q)); v != "[]" {
		t.Fatalf("stored=%q", v)
	}
}

func TestAutocomplete_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	next := &fakeSearcher{err: boom}
	c, mr := newCache(t, next)
	q := model.CanonicalQuery{Text: "x", Page: model.Pagination{Limit: 10}}

	if _, err := c.Autocomplete(context.Background(), q); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if mr.Exists(c.Key(q)) {
		t.Fatalf("failed result must not be stored")
	}
}

func TestAutocomplete_UndecodableEntryIsDeleted(t *testing.T) {
	boom := errors.New("boom")
	next := &fakeSearcher{err: boom}
	c, mr := newCache(t, next)
	q := model.CanonicalQuery{Text: "x", Page: model.Pagination{Limit: 10}}
	if err := mr.Set(c.Key(q), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := c.Autocomplete(context.Background(), q); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom from backend", err)
	}
	if mr.Exists(c.Key(q)) {
		t.Fatalf("undecodable entry must be removed")
	}
}

func TestAutocomplete_RedisDownFallsThrough(t *testing.T) {
	next := &fakeSearcher{places: []model.Place{{ID: "a"}}}
	c, mr := newCache(t, next)
	mr.Close()

	out, err := c.Autocomplete(context.Background(), model.CanonicalQuery{Text: "a"})
	if err != nil || len(out) != 1 {
		t.Fatalf("cache failure must not fail the request: out=%v err=%v", out, err)
	}
}

func TestAutocomplete_ConcurrentMissesShareOneCall(t *testing.T) {
	next := &fakeSearcher{release: make(chan struct{}), places: []model.Place{{ID: "a"}}}
	c, _ := newCache(t, next)
	q := model.CanonicalQuery{Text: "a", Page: model.Pagination{Limit: 10}}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Autocomplete(context.Background(), q)
			errs <- err
		}()
	}
	// let the callers pile up on the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Autocomplete: %v", err)
		}
	}
	if got := next.calls.Load(); got != 1 {
		t.Fatalf("backend calls=%d want 1", got)
	}
}

func TestKey_PointBiasUsesCell(t *testing.T) {
	c, _ := newCache(t, &fakeSearcher{})
	q := model.CanonicalQuery{
		Scope: model.DatasetScope{ID: strptr("fr")},
		Bias:  model.PointBias(model.Coordinate{Lon: 2.35, Lat: 48.85}),
	}
	parts := strings.Split(c.Key(q), ":")
	if len(parts) != 4 || parts[0] != keys.Prefix || parts[1] != "fr" {
		t.Fatalf("key=%s", c.Key(q))
	}
	if parts[2] == keys.NoCell || len(parts[2]) != 15 {
		t.Fatalf("cell segment=%q", parts[2])
	}

	q.Bias = model.NoBias()
	if parts := strings.Split(c.Key(q), ":"); parts[2] != keys.NoCell {
		t.Fatalf("no bias must use %q, got %q", keys.NoCell, parts[2])
	}
}

func TestFeature_LRU(t *testing.T) {
	next := &fakeSearcher{}
	c, _ := newCache(t, next)
	ctx := context.Background()

	for range 2 {
		out, err := c.Feature(ctx, model.DatasetScope{}, "poi:1")
		if err != nil || len(out) != 1 || out[0].ID != "poi:1" {
			t.Fatalf("out=%v err=%v", out, err)
		}
	}
	if n := next.features.Load(); n != 1 {
		t.Fatalf("feature calls=%d want 1", n)
	}
	// a different scope is a different entry
	if _, err := c.Feature(ctx, model.DatasetScope{AllData: true}, "poi:1"); err != nil {
		t.Fatalf("Feature: %v", err)
	}
	if n := next.features.Load(); n != 2 {
		t.Fatalf("feature calls=%d want 2", n)
	}
}

func TestFeature_DistinctDatasetsDoNotShareEntries(t *testing.T) {
	next := &fakeSearcher{}
	c, _ := newCache(t, next)
	ctx := context.Background()

	long := strings.Repeat("d", 70)
	pairs := [][2]string{{"a:b", "a-b"}, {" fr", "fr"}, {"_x", "d_x"}, {long + "1", long + "2"}}
	want := int32(0)
	for _, p := range pairs {
		for _, ds := range p {
			if _, err := c.Feature(ctx, model.DatasetScope{ID: strptr(ds)}, "x"); err != nil {
				t.Fatalf("Feature(%q): %v", ds, err)
			}
			want++
		}
	}
	if _, err := c.Feature(ctx, model.DatasetScope{}, "x"); err != nil {
		t.Fatalf("Feature: %v", err)
	}
	want++
	if n := next.features.Load(); n != want {
		t.Fatalf("feature calls=%d want %d", n, want)
	}
}

func seedKeys(t *testing.T, c *Cache, next *fakeSearcher, qs ...model.CanonicalQuery) {
	t.Helper()
	next.places = []model.Place{{ID: "x"}}
	for _, q := range qs {
		if _, err := c.Autocomplete(context.Background(), q); err != nil {
			t.Fatalf("Autocomplete: %v", err)
		}
	}
}

func TestInvalidate_Dataset(t *testing.T) {
	next := &fakeSearcher{}
	c, mr := newCache(t, next)

	fr := model.CanonicalQuery{Text: "a", Scope: model.DatasetScope{ID: strptr("fr")}}
	de := model.CanonicalQuery{Text: "a", Scope: model.DatasetScope{ID: strptr("de")}}
	all := model.CanonicalQuery{Text: "a", Scope: model.DatasetScope{AllData: true}}
	none := model.CanonicalQuery{Text: "a"}
	seedKeys(t, c, next, fr, de, all, none)

	n, err := c.Invalidate(context.Background(), "fr", nil)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted=%d want 2", n)
	}
	if mr.Exists(c.Key(fr)) || mr.Exists(c.Key(all)) {
		t.Fatalf("fr and all_data entries must be gone")
	}
	if !mr.Exists(c.Key(de)) || !mr.Exists(c.Key(none)) {
		t.Fatalf("unrelated entries must survive")
	}
}

func TestInvalidate_SharedPartitionDropsEverything(t *testing.T) {
	next := &fakeSearcher{}
	c, mr := newCache(t, next)
	seedKeys(t, c, next,
		model.CanonicalQuery{Text: "a", Scope: model.DatasetScope{ID: strptr("fr")}},
		model.CanonicalQuery{Text: "a"},
	)
	if _, err := c.Invalidate(context.Background(), "", nil); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("keys left: %v", mr.Keys())
	}
}

func TestInvalidate_CellsKeepFarPointEntries(t *testing.T) {
	next := &fakeSearcher{}
	c, mr := newCache(t, next)
	scope := model.DatasetScope{ID: strptr("fr")}

	paris := model.CanonicalQuery{Text: "a", Scope: scope, Bias: model.PointBias(model.Coordinate{Lon: 2.35, Lat: 48.85})}
	lyon := model.CanonicalQuery{Text: "a", Scope: scope, Bias: model.PointBias(model.Coordinate{Lon: 4.83, Lat: 45.76})}
	unbiased := model.CanonicalQuery{Text: "a", Scope: scope}
	seedKeys(t, c, next, paris, lyon, unbiased)

	cells, err := h3mapper.New().CellsForBBox(model.BBox{MinLon: 2.34, MinLat: 48.84, MaxLon: 2.36, MaxLat: 48.86}, 7)
	if err != nil {
		t.Fatalf("CellsForBBox: %v", err)
	}
	if _, err := c.Invalidate(context.Background(), "fr", cells); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mr.Exists(c.Key(paris)) || mr.Exists(c.Key(unbiased)) {
		t.Fatalf("entries inside the bbox cells must be gone")
	}
	if !mr.Exists(c.Key(lyon)) {
		t.Fatalf("entry keyed by a far cell must survive")
	}
}

func TestInvalidate_PurgesFeatureLRU(t *testing.T) {
	next := &fakeSearcher{}
	c, _ := newCache(t, next)
	ctx := context.Background()

	_, _ = c.Feature(ctx, model.DatasetScope{}, "poi:1")
	if _, err := c.Invalidate(ctx, "fr", nil); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, _ = c.Feature(ctx, model.DatasetScope{}, "poi:1")
	if n := next.features.Load(); n != 2 {
		t.Fatalf("feature calls=%d want 2 after purge", n)
	}
}
