package elastic

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

// decay applied around a point bias
const (
	biasScale = "50km"
	biasDecay = 0.5
)

// characters with a meaning in an index list or forbidden in index names;
// ':' would address a remote cluster
const indexMeta = `,*/\?"<>|#: `

// Indexes returns the comma-separated index list a scope searches. A dataset
// id that would widen the list or address another index is rejected.
func Indexes(prefix string, scope model.DatasetScope) (string, error) {
	switch {
	case scope.AllData:
		return prefix, nil
	case scope.ID != nil:
		if i := strings.IndexAny(*scope.ID, indexMeta); i >= 0 {
			return "", fmt.Errorf("dataset %q: character %q is not allowed", *scope.ID, (*scope.ID)[i])
		}
		return prefix + "_geo_data," + prefix + "_" + *scope.ID, nil
	default:
		return prefix + "_geo_data", nil
	}
}

func escapeIndexes(list string) string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, ",")
}

// BuildQuery translates a canonical query into an _search body.
func BuildQuery(q model.CanonicalQuery) map[string]any {
	var must any
	if strings.TrimSpace(q.Text) == "" {
		must = map[string]any{"match_all": map[string]any{}}
	} else {
		must = map[string]any{
			"match": map[string]any{
				"label.prefix": map[string]any{"query": q.Text, "operator": "and"},
			},
		}
	}

	filters := []any{}
	if q.Types != nil {
		filters = append(filters, map[string]any{"terms": map[string]any{"type": q.Types}})
	}
	if poly, ok := q.Bias.Shape(); ok {
		points := make([]map[string]float64, 0, len(poly))
		for _, p := range poly {
			points = append(points, map[string]float64{"lat": p.Lat, "lon": p.Lon})
		}
		filters = append(filters, map[string]any{
			"geo_polygon": map[string]any{"coord": map[string]any{"points": points}},
		})
	}

	var query any = map[string]any{"bool": map[string]any{"must": must, "filter": filters}}
	if c, ok := q.Bias.Point(); ok {
		query = map[string]any{
			"function_score": map[string]any{
				"query": query,
				"functions": []any{map[string]any{
					"gauss": map[string]any{"coord": map[string]any{
						"origin": map[string]float64{"lat": c.Lat, "lon": c.Lon},
						"scale":  biasScale,
						"decay":  biasDecay,
					}},
				}},
				"boost_mode": "multiply",
			},
		}
	}

	return map[string]any{
		"query": query,
		"from":  q.Page.Offset,
		"size":  q.Page.Limit,
	}
}

// FeatureQuery looks a document up by id.
func FeatureQuery(id string) map[string]any {
	return map[string]any{
		"query": map[string]any{"ids": map[string]any{"values": []string{id}}},
	}
}
