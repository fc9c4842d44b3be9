package query

import (
	"slices"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/params"
)

// Build assembles a CanonicalQuery that shares no memory with its inputs.
func Build(text string, f Filters, bias model.LocationBias) model.CanonicalQuery {
	scope := model.DatasetScope{AllData: f.Scope.AllData}
	if f.Scope.ID != nil {
		id := *f.Scope.ID
		scope.ID = &id
	}
	return model.CanonicalQuery{
		Text:  text,
		Scope: scope,
		Page:  f.Page,
		Bias:  bias,
		Types: slices.Clone(f.Types),
	}
}

// PointQuery normalizes the GET /v1/autocomplete parameters.
func (n *Normalizer) PointQuery(p params.Raw) (model.CanonicalQuery, error) {
	return n.build(p, n.PointBias)
}

// ShapeQuery normalizes the POST /v1/autocomplete parameters.
func (n *Normalizer) ShapeQuery(p params.Raw) (model.CanonicalQuery, error) {
	return n.build(p, n.ShapeBias)
}

func (n *Normalizer) build(p params.Raw, resolve func(params.Raw) (model.LocationBias, error)) (model.CanonicalQuery, error) {
	text, errText := p.Str(ParamQuery)
	f, errFilters := n.Filters(p)
	bias, errBias := resolve(p)
	if err := collect(errText, errFilters, errBias); err != nil {
		return model.CanonicalQuery{}, err
	}
	q := ""
	if text != nil {
		q = *text
	}
	return Build(q, f, bias), nil
}

// FeatureLookup normalizes GET /v1/features/{id}.
func (n *Normalizer) FeatureLookup(id string, p params.Raw) (model.DatasetScope, string, error) {
	scope, errScope := n.Scope(p)
	if err := collect(errScope, n.declare(featureDecl{ID: id})); err != nil {
		return model.DatasetScope{}, "", err
	}
	return scope, id, nil
}
