// Package invalidation describes dataset-update events that invalidate cached
// autocomplete results.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

const (
	OpReload = "reload"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event is published on the dataset-updates topic whenever an indexer
// rewrites places. Dataset "" is the shared partition every query reads.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Dataset string    `json:"dataset"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	BBox    *BBox     `json:"bbox,omitempty"`
}

// BBox uses x for longitude and y for latitude.
type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return errors.New("version must be 1")
	}
	switch e.Op {
	case OpReload, OpUpdate, OpDelete:
	default:
		return errors.New("op must be reload|update|delete")
	}
	if e.Dataset != strings.TrimSpace(e.Dataset) {
		return errors.New("dataset must not carry surrounding whitespace")
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	if e.BBox == nil {
		return nil
	}
	if e.Op == OpReload {
		return errors.New("reload replaces the whole dataset and takes no bbox")
	}
	bb := *e.BBox
	if bb.SRID != "" && bb.SRID != "EPSG:4326" {
		return fmt.Errorf("bbox.srid must be EPSG:4326, got %q", bb.SRID)
	}
	if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
		return errors.New("bbox longitude out of range")
	}
	if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
		return errors.New("bbox latitude out of range")
	}
	if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
		return errors.New("bbox must satisfy x2>x1 and y2>y1")
	}
	return nil
}

// Area returns the event's bbox as a model.BBox, or false when the whole
// dataset changed.
func (e Event) Area() (model.BBox, bool) {
	if e.BBox == nil {
		return model.BBox{}, false
	}
	return model.BBox{
		MinLon: e.BBox.X1,
		MinLat: e.BBox.Y1,
		MaxLon: e.BBox.X2,
		MaxLat: e.BBox.Y2,
	}, true
}
