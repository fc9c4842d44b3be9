// Package bleveidx is an in-memory search backend for development and tests.
// It mirrors the Elasticsearch index layout: places without a dataset live in
// the shared partition, others in their dataset's partition.
package bleveidx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/geo"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/backend"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

const (
	Name            = "bleve"
	sharedPartition = "_geo_data"
)

func init() {
	backend.Register(Name, func(cfg config.Config, logger *slog.Logger) (backend.Searcher, error) {
		idx, err := New(logger)
		if err != nil {
			return nil, err
		}
		if cfg.BleveSeedFile == "" {
			logger.Warn("bleve backend started without seed file; index is empty")
			return idx, nil
		}
		f, err := os.Open(cfg.BleveSeedFile)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer func() { _ = f.Close() }()
		n, err := idx.Seed(f)
		if err != nil {
			return nil, err
		}
		logger.Info("bleve index seeded", "file", cfg.BleveSeedFile, "places", n)
		return idx, nil
	})
}

type geoPoint struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// document is what bleve indexes; model.Place is what callers get back.
type document struct {
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Partition string   `json:"partition"`
	Coord     geoPoint `json:"coord"`
}

type Index struct {
	logger *slog.Logger
	index  bleve.Index

	mu     sync.RWMutex
	places map[string]model.Place
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	label := bleve.NewTextFieldMapping()
	label.Analyzer = standard.Name
	doc.AddFieldMappingsAt("label", label)

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("type", kw)
	doc.AddFieldMappingsAt("partition", kw)

	doc.AddFieldMappingsAt("coord", bleve.NewGeoPointFieldMapping())

	im.DefaultMapping = doc
	return im
}

func New(logger *slog.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{logger: logger, index: idx, places: map[string]model.Place{}}, nil
}

func partitionOf(dataset string) string {
	if dataset == "" {
		return sharedPartition
	}
	return dataset
}

// Put indexes places, replacing any with the same id.
func (i *Index) Put(places ...model.Place) error {
	b := i.index.NewBatch()
	for _, p := range places {
		if p.ID == "" {
			return errors.New("place without id")
		}
		d := document{
			Label:     p.Label,
			Type:      p.Type,
			Partition: partitionOf(p.Dataset),
			Coord:     geoPoint{Lon: p.Coord.Lon, Lat: p.Coord.Lat},
		}
		if err := b.Index(p.ID, d); err != nil {
			return fmt.Errorf("index %s: %w", p.ID, err)
		}
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.index.Batch(b); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	for _, p := range places {
		i.places[p.ID] = p
	}
	return nil
}

func (i *Index) Close() error { return i.index.Close() }

func scopeFilter(scope model.DatasetScope) blevequery.Query {
	if scope.AllData {
		return nil
	}
	shared := bleve.NewTermQuery(sharedPartition)
	shared.SetField("partition")
	if scope.ID == nil {
		return shared
	}
	own := bleve.NewTermQuery(*scope.ID)
	own.SetField("partition")
	return bleve.NewDisjunctionQuery(shared, own)
}

func textQuery(text string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return bleve.NewMatchAllQuery()
	}
	qs := make([]blevequery.Query, 0, len(terms))
	for _, t := range terms {
		pq := bleve.NewPrefixQuery(t)
		pq.SetField("label")
		qs = append(qs, pq)
	}
	return bleve.NewConjunctionQuery(qs...)
}

// BuildRequest translates a canonical query into a bleve search request.
func BuildRequest(q model.CanonicalQuery) (*bleve.SearchRequest, error) {
	if q.Page.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0, got %d", q.Page.Offset)
	}
	if q.Page.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0, got %d", q.Page.Limit)
	}
	// offset+limit+1 must not overflow inside the collector
	if q.Page.Offset > math.MaxInt-q.Page.Limit-1 {
		return nil, fmt.Errorf("offset %d with limit %d is out of range", q.Page.Offset, q.Page.Limit)
	}

	must := []blevequery.Query{textQuery(q.Text)}
	if f := scopeFilter(q.Scope); f != nil {
		must = append(must, f)
	}
	if q.Types != nil {
		ts := make([]blevequery.Query, 0, len(q.Types))
		for _, typ := range q.Types {
			tq := bleve.NewTermQuery(typ)
			tq.SetField("type")
			ts = append(ts, tq)
		}
		// an explicit empty list matches nothing, like an empty terms filter
		must = append(must, bleve.NewDisjunctionQuery(ts...))
	}
	if poly, ok := q.Bias.Shape(); ok {
		pts := make([]geo.Point, 0, len(poly))
		for _, p := range poly {
			pts = append(pts, geo.Point{Lon: p.Lon, Lat: p.Lat})
		}
		gq := blevequery.NewGeoBoundingPolygonQuery(pts)
		gq.SetField("coord")
		must = append(must, gq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), q.Page.Limit, q.Page.Offset, false)
	order := search.SortOrder{&search.SortScore{Desc: true}, &search.SortDocID{}}
	if c, ok := q.Bias.Point(); ok {
		dist, err := search.NewSortGeoDistance("coord", "km", c.Lon, c.Lat, false)
		if err != nil {
			return nil, fmt.Errorf("distance sort: %w", err)
		}
		order = search.SortOrder{dist, &search.SortScore{Desc: true}, &search.SortDocID{}}
	}
	req.SortByCustom(order)
	return req, nil
}

func (i *Index) Autocomplete(ctx context.Context, q model.CanonicalQuery) ([]model.Place, error) {
	req, err := BuildRequest(q)
	if err != nil {
		return nil, err
	}
	if q.Page.Limit == 0 {
		return []model.Place{}, nil
	}
	return i.run(ctx, req)
}

func (i *Index) Feature(ctx context.Context, scope model.DatasetScope, id string) ([]model.Place, error) {
	must := []blevequery.Query{bleve.NewDocIDQuery([]string{id})}
	if f := scopeFilter(scope); f != nil {
		must = append(must, f)
	}
	out, err := i.run(ctx, bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), 1, 0, false))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, backend.ErrNotFound
	}
	return out, nil
}

func (i *Index) Ping(_ context.Context) error {
	if _, err := i.index.DocCount(); err != nil {
		return fmt.Errorf("bleve doc count: %w", err)
	}
	return nil
}

func (i *Index) run(ctx context.Context, req *bleve.SearchRequest) ([]model.Place, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	out := make([]model.Place, 0, len(res.Hits))
	for _, h := range res.Hits {
		if p, ok := i.places[h.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
