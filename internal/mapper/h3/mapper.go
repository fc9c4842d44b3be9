package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// CellForCoord returns the cell containing c at res.
func (m *Mapper) CellForCoord(c model.Coordinate, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return "", fmt.Errorf("coordinate %s out of range", c)
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: c.Lat, Lng: c.Lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return cell.String(), nil
}

// CellsForBBox covers bb with cells at res. Boxes smaller than one cell
// still yield the cells under their corners and center.
func (m *Mapper) CellsForBBox(bb model.BBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if !(bb.MaxLon > bb.MinLon && bb.MaxLat > bb.MinLat) {
		return nil, errors.New("bbox must satisfy max > min on both axes")
	}
	// v4 wants degrees
	outer := h3.GeoLoop{
		{Lat: bb.MinLat, Lng: bb.MinLon},
		{Lat: bb.MinLat, Lng: bb.MaxLon},
		{Lat: bb.MaxLat, Lng: bb.MaxLon},
		{Lat: bb.MaxLat, Lng: bb.MinLon},
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	probes := []h3.LatLng{
		outer[0], outer[1], outer[2], outer[3],
		{Lat: (bb.MinLat + bb.MaxLat) / 2, Lng: (bb.MinLon + bb.MaxLon) / 2},
	}
	for _, p := range probes {
		c, err := h3.LatLngToCell(p, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell: %w", err)
		}
		cells = append(cells, c)
	}
	return uniqueSorted(cells), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func uniqueSorted(cells []h3.Cell) model.Cells {
	out := make([]string, 0, len(cells))
	seen := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		s := c.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
