package load

import "encoding/json"

// geoFeature is the subset of a GeoJSON Feature the loader cares
// about: its id/stop_name properties, plus the raw bytes so the
// exporter can write the geometry back out unchanged.
type geoFeature struct {
	ID   string
	Name string
	Raw  string
}

type geoJSONDoc struct {
	Type     string            `json:"type"`
	Features []geoJSONFeature  `json:"features"`
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Properties geoJSONProps    `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoJSONProps struct {
	StopName string `json:"stop_name"`
}

func parseGeoJSONFeatures(data []byte) ([]geoFeature, error) {
	var doc geoJSONDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	features := make([]geoFeature, 0, len(doc.Features))
	for _, f := range doc.Features {
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		features = append(features, geoFeature{
			ID:   f.ID,
			Name: f.Properties.StopName,
			Raw:  string(raw),
		})
	}
	return features, nil
}
