package model

// GeocodeJSONVersion is reported in every autocomplete response.
const GeocodeJSONVersion = "0.1.0"

type EndPoint struct {
	Description string `json:"description"`
}

type Status struct {
	Version string `json:"version"`
	ES      string `json:"es"`
	Status  string `json:"status"`
}

type AutocompleteResponse struct {
	Type      string        `json:"type"`
	Geocoding GeocodingMeta `json:"geocoding"`
	Features  []Feature     `json:"features"`
}

type GeocodingMeta struct {
	Version string `json:"version"`
	Query   string `json:"query,omitempty"`
}

type Feature struct {
	Type       string            `json:"type"`
	Geometry   PointGeometry     `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type PointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

type FeatureProperties struct {
	Geocoding GeocodingProperties `json:"geocoding"`
}

type GeocodingProperties struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	Dataset string `json:"dataset,omitempty"`
}

// NewAutocompleteResponse wraps backend places into a GeocodeJSON collection.
func NewAutocompleteResponse(query string, places []Place) AutocompleteResponse {
	feats := make([]Feature, 0, len(places))
	for _, p := range places {
		feats = append(feats, Feature{
			Type: "Feature",
			Geometry: PointGeometry{
				Type:        "Point",
				Coordinates: [2]float64{p.Coord.Lon, p.Coord.Lat},
			},
			Properties: FeatureProperties{Geocoding: GeocodingProperties{
				ID:      p.ID,
				Type:    p.Type,
				Label:   p.Label,
				Name:    p.Name,
				Dataset: p.Dataset,
			}},
		})
	}
	return AutocompleteResponse{
		Type:      "FeatureCollection",
		Geocoding: GeocodingMeta{Version: GeocodeJSONVersion, Query: query},
		Features:  feats,
	}
}
