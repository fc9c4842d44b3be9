package query

import (
	"fmt"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/apperr"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/params"
)

const coordinatesPath = ParamShape + ".geometry.coordinates"

// ExtractPolygon reads the outer ring of {geometry: {coordinates: [[[lon,lat],...]]}}
// and returns it as (lat, lon) pairs. Inner rings are ignored.
func ExtractPolygon(shape any) (model.Polygon, error) {
	raw, ok := params.Lookup(shape, "geometry", "coordinates")
	if !ok {
		return nil, apperr.Field(coordinatesPath, "is required")
	}
	rings, ok := raw.([]any)
	if !ok || len(rings) == 0 {
		return nil, apperr.Field(coordinatesPath, "expected a non-empty array of rings")
	}
	outer, ok := rings[0].([]any)
	if !ok || len(outer) == 0 {
		return nil, apperr.Field(coordinatesPath+"[0]", "expected a non-empty array of [lon, lat] positions")
	}

	poly := make(model.Polygon, 0, len(outer))
	for i, pos := range outer {
		pair, ok := pos.([]any)
		if !ok || len(pair) != 2 {
			return nil, apperr.Field(fmt.Sprintf("%s[0][%d]", coordinatesPath, i), "expected a [lon, lat] pair")
		}
		lon, okLon := params.Number(pair[0])
		lat, okLat := params.Number(pair[1])
		if !okLon || !okLat {
			return nil, apperr.Field(fmt.Sprintf("%s[0][%d]", coordinatesPath, i), "lon and lat must be numbers")
		}
		// backend expects (lat, lon)
		poly = append(poly, model.LatLon{Lat: lat, Lon: lon})
	}
	return poly, nil
}
