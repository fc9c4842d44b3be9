// Package query normalizes raw request parameters into a model.CanonicalQuery.
package query

import (
	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/params"
)

// Defaults are substituted for absent pagination parameters.
type Defaults struct {
	Offset int
	Limit  int
}

func DefaultPaging() Defaults {
	return Defaults{Offset: 0, Limit: 10}
}

// Filters is the typed output of filter normalization.
type Filters struct {
	Scope model.DatasetScope
	Page  model.Pagination
	Types []string
}

// Normalizer is stateless across requests and safe for concurrent use.
type Normalizer struct {
	defaults Defaults
	validate *validator.Validate
}

func NewNormalizer(d Defaults) *Normalizer {
	return &Normalizer{defaults: d, validate: newValidator()}
}

func (n *Normalizer) Defaults() Defaults { return n.defaults }

// Scope reads pt_dataset and _all_data. The dataset id is passed through
// without checking it against any registry.
func (n *Normalizer) Scope(p params.Raw) (model.DatasetScope, error) {
	id, err := p.Str(ParamDataset)
	if err != nil {
		return model.DatasetScope{}, err
	}
	return model.DatasetScope{
		ID:      id,
		AllData: p.BoolOr(ParamAllData, false),
	}, nil
}

// Filters resolves dataset scope, pagination and the result-type list.
// Negative offset/limit are left for the backend to reject.
func (n *Normalizer) Filters(p params.Raw) (Filters, error) {
	scope, errScope := n.Scope(p)
	offset, errOffset := p.Int(ParamOffset)
	limit, errLimit := p.Int(ParamLimit)
	types, errTypes := p.Strings(ParamType)
	if err := collect(errScope, errOffset, errLimit, errTypes); err != nil {
		return Filters{}, err
	}

	page := model.Pagination{Offset: n.defaults.Offset, Limit: n.defaults.Limit}
	if offset != nil {
		page.Offset = *offset
	}
	if limit != nil {
		page.Limit = *limit
	}
	return Filters{Scope: scope, Page: page, Types: types}, nil
}
