// Package mapper converts between geometric coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

type Interface interface {
	CellForCoord(c model.Coordinate, res int) (string, error)
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
}
