// Package elastic is the Elasticsearch search backend.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/backend"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/httpclient"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

const (
	Name          = "elasticsearch"
	defaultPrefix = "munin"
	maxErrBody    = 1 << 10
)

func init() {
	backend.Register(Name, func(cfg config.Config, logger *slog.Logger) (backend.Searcher, error) {
		return New(logger, httpclient.NewOutbound(), cfg.ESConnString)
	})
}

type Client struct {
	logger *slog.Logger
	client *http.Client
	base   *url.URL
	prefix string
}

// ParseConnString splits "http://host:9200/munin" into the server URL and
// the index prefix. A missing path uses "munin".
func ParseConnString(cnx string) (*url.URL, string, error) {
	u, err := url.Parse(strings.TrimSpace(cnx))
	if err != nil {
		return nil, "", fmt.Errorf("parse es connection string: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, "", fmt.Errorf("es connection string %q: missing scheme or host", cnx)
	}
	prefix := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		prefix = prefix[i+1:]
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	base := *u
	base.Path, base.RawPath, base.RawQuery, base.Fragment = "", "", "", ""
	return &base, prefix, nil
}

func New(logger *slog.Logger, client *http.Client, cnx string) (*Client, error) {
	base, prefix, err := ParseConnString(cnx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = httpclient.NewOutbound()
	}
	return &Client{logger: logger, client: client, base: base, prefix: prefix}, nil
}

func (c *Client) Autocomplete(ctx context.Context, q model.CanonicalQuery) ([]model.Place, error) {
	idx, err := Indexes(c.prefix, q.Scope)
	if err != nil {
		return nil, err
	}
	return c.search(ctx, idx, BuildQuery(q))
}

func (c *Client) Feature(ctx context.Context, scope model.DatasetScope, id string) ([]model.Place, error) {
	idx, err := Indexes(c.prefix, scope)
	if err != nil {
		return nil, err
	}
	places, err := c.search(ctx, idx, FeatureQuery(id))
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, backend.ErrNotFound
	}
	return places, nil
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ping: elasticsearch status %d", resp.StatusCode)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []hit `json:"hits"`
	} `json:"hits"`
}

type hit struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Type   string `json:"_type"`
	Source source `json:"_source"`
}

type source struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Dataset string `json:"dataset"`
	Coord   struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
}

func (c *Client) search(ctx context.Context, indexes string, body map[string]any) ([]model.Place, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	u := *c.base
	u.Path = "/" + indexes + "/_search"
	u.RawPath = "/" + escapeIndexes(indexes) + "/_search"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "es search done",
		"indexes", indexes,
		"status", resp.StatusCode,
		"duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, fmt.Errorf("elasticsearch status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return toPlaces(c.prefix, sr.Hits.Hits), nil
}

func toPlaces(prefix string, hits []hit) []model.Place {
	out := make([]model.Place, 0, len(hits))
	for _, h := range hits {
		p := model.Place{
			ID:      h.Source.ID,
			Label:   h.Source.Label,
			Name:    h.Source.Name,
			Type:    h.Source.Type,
			Dataset: h.Source.Dataset,
			Coord:   model.Coordinate{Lon: h.Source.Coord.Lon, Lat: h.Source.Coord.Lat},
		}
		if p.ID == "" {
			p.ID = h.ID
		}
		if p.Type == "" {
			p.Type = h.Type
		}
		if p.Dataset == "" {
			p.Dataset = datasetFromIndex(prefix, h.Index)
		}
		out = append(out, p)
	}
	return out
}

// datasetFromIndex maps "munin_fr" to "fr"; shared indexes have no dataset.
func datasetFromIndex(prefix, index string) string {
	rest, ok := strings.CutPrefix(index, prefix+"_")
	if !ok || rest == "geo_data" || strings.HasPrefix(rest, "geo_data_") {
		return ""
	}
	return rest
}
