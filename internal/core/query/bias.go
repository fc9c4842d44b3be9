package query

import (
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/params"
)

// ResolvePoint builds a point bias only when both axes are present.
// A missing lon short-circuits to BiasNone even if lat is set, and a lon
// without lat is BiasNone as well; neither case is reported as an error.
func ResolvePoint(lon, lat *float64) model.LocationBias {
	if lon == nil {
		return model.NoBias()
	}
	if lat == nil {
		return model.NoBias()
	}
	return model.PointBias(model.Coordinate{Lon: *lon, Lat: *lat})
}

// PointBias resolves the bias of the GET autocomplete form (lon/lat, no shape).
func (n *Normalizer) PointBias(p params.Raw) (model.LocationBias, error) {
	lon, errLon := p.Float(ParamLon)
	lat, errLat := p.Float(ParamLat)
	if err := collect(errLon, errLat); err != nil {
		return model.NoBias(), err
	}
	if err := n.declare(pointDecl{Lon: lon, Lat: lat}); err != nil {
		return model.NoBias(), err
	}
	return ResolvePoint(lon, lat), nil
}

// ShapeBias resolves the bias of the POST autocomplete form. The shape is
// required there.
func (n *Normalizer) ShapeBias(p params.Raw) (model.LocationBias, error) {
	shape, err := p.Object(ParamShape)
	if err != nil {
		return model.NoBias(), err
	}
	if err := n.declare(shapeDecl{Shape: shape}); err != nil {
		return model.NoBias(), err
	}
	poly, err := ExtractPolygon(shape)
	if err != nil {
		return model.NoBias(), err
	}
	return model.ShapeBias(poly), nil
}
