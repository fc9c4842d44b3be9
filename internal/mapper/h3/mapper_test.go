package h3mapper

import (
	"reflect"
	"slices"
	"sort"
	"testing"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

func hasDups(cells model.Cells) bool {
	seen := map[string]struct{}{}
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			return true
		}
		seen[c] = struct{}{}
	}
	return false
}

func TestBBox_HappyPath_SortedUnique(t *testing.T) {
	m := New()
	bb := model.BBox{MinLon: 2.25, MinLat: 48.81, MaxLon: 2.42, MaxLat: 48.90}

	cells, err := m.CellsForBBox(bb, 8)
	if err != nil {
		t.Fatalf("CellsForBBox err: %v", err)
	}
	if len(cells) < 5 {
		t.Fatalf("expected several cells for a city-sized bbox, got %d", len(cells))
	}
	if !sort.StringsAreSorted([]string(cells)) {
		t.Fatalf("cells must be sorted")
	}
	if hasDups(cells) {
		t.Fatalf("cells must be de-duplicated")
	}

	again, err := m.CellsForBBox(bb, 8)
	if err != nil || !reflect.DeepEqual(cells, again) {
		t.Fatalf("expected identical output for identical input")
	}
}

func TestBBox_ContainsCellOfInnerPoint(t *testing.T) {
	m := New()
	bb := model.BBox{MinLon: 2.25, MinLat: 48.81, MaxLon: 2.42, MaxLat: 48.90}
	cell, err := m.CellForCoord(model.Coordinate{Lon: 2.35, Lat: 48.85}, 7)
	if err != nil {
		t.Fatalf("CellForCoord: %v", err)
	}
	cells, err := m.CellsForBBox(bb, 7)
	if err != nil {
		t.Fatalf("CellsForBBox: %v", err)
	}
	if !slices.Contains(cells, cell) {
		t.Fatalf("bbox cells %v do not include %s", cells, cell)
	}
}

func TestBBox_TinyBoxStillCovered(t *testing.T) {
	m := New()
	bb := model.BBox{MinLon: 2.3500, MinLat: 48.8500, MaxLon: 2.3501, MaxLat: 48.8501}
	cells, err := m.CellsForBBox(bb, 5)
	if err != nil {
		t.Fatalf("CellsForBBox: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("a box smaller than a cell must still map to its cell")
	}
}

func TestBBox_Invalid(t *testing.T) {
	m := New()
	if _, err := m.CellsForBBox(model.BBox{MinLon: 2, MinLat: 48, MaxLon: 2, MaxLat: 49}, 7); err == nil {
		t.Fatalf("expected error for degenerate bbox")
	}
	if _, err := m.CellsForBBox(model.BBox{MinLon: 2, MinLat: 48, MaxLon: 3, MaxLat: 49}, 16); err == nil {
		t.Fatalf("expected error for bad resolution")
	}
}

func TestCellForCoord(t *testing.T) {
	m := New()
	a, err := m.CellForCoord(model.Coordinate{Lon: 2.35, Lat: 48.85}, 7)
	if err != nil {
		t.Fatalf("CellForCoord: %v", err)
	}
	b, err := m.CellForCoord(model.Coordinate{Lon: 2.3501, Lat: 48.8501}, 7)
	if err != nil {
		t.Fatalf("CellForCoord: %v", err)
	}
	if a != b {
		t.Fatalf("nearby points at res 7 should share a cell: %s vs %s", a, b)
	}
	if _, err := m.CellForCoord(model.Coordinate{Lon: 200, Lat: 0}, 7); err == nil {
		t.Fatalf("expected error for out-of-range lon")
	}
}
