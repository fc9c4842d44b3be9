// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"slices"
)

// Coordinate is a (longitude, latitude) pair in decimal degrees.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
}

// LatLon is one polygon vertex in the backend's (lat, lon) axis order.
type LatLon struct {
	Lat float64
	Lon float64
}

// Polygon is the outer ring of a shape bias, in (lat, lon) order.
type Polygon []LatLon

type BiasKind int

const (
	BiasNone BiasKind = iota
	BiasPoint
	BiasShape
)

func (k BiasKind) String() string {
	switch k {
	case BiasPoint:
		return "point"
	case BiasShape:
		return "shape"
	default:
		return "none"
	}
}

// LocationBias holds at most one of a point or a shape. The zero value is
// BiasNone.
type LocationBias struct {
	kind  BiasKind
	point Coordinate
	shape Polygon
}

func NoBias() LocationBias { return LocationBias{} }

func PointBias(c Coordinate) LocationBias {
	return LocationBias{kind: BiasPoint, point: c}
}

func ShapeBias(p Polygon) LocationBias {
	return LocationBias{kind: BiasShape, shape: slices.Clone(p)}
}

func (b LocationBias) Kind() BiasKind { return b.kind }

func (b LocationBias) Point() (Coordinate, bool) {
	return b.point, b.kind == BiasPoint
}

// Shape returns a copy of the polygon so callers cannot mutate the bias.
func (b LocationBias) Shape() (Polygon, bool) {
	if b.kind != BiasShape {
		return nil, false
	}
	return slices.Clone(b.shape), true
}

type Pagination struct {
	Offset int
	Limit  int
}

type DatasetScope struct {
	ID      *string
	AllData bool
}

// Dataset returns the dataset id or "" when none was given.
func (s DatasetScope) Dataset() string {
	if s.ID == nil {
		return ""
	}
	return *s.ID
}

// CanonicalQuery is the normalized request handed to a search backend.
// Types == nil means no type filter; an empty non-nil slice is kept as given.
type CanonicalQuery struct {
	Text  string
	Scope DatasetScope
	Page  Pagination
	Bias  LocationBias
	Types []string
}

// Place is one candidate returned by a search backend.
type Place struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Dataset string     `json:"dataset,omitempty"`
	Coord   Coordinate `json:"coord"`
}

// BBox is a lon/lat bounding box in EPSG:4326.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Cells is a sorted, de-duplicated list of H3 cell ids.
type Cells []string
