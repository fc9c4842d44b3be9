package bleveidx

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

// Seed loads a JSON array of places.
func (i *Index) Seed(r io.Reader) (int, error) {
	var places []model.Place
	if err := json.NewDecoder(r).Decode(&places); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	if err := i.Put(places...); err != nil {
		return 0, err
	}
	return len(places), nil
}
