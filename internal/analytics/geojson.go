package analytics

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/evcraddock/vigia/internal/visit"
)

// GeoJSON renders visits as a FeatureCollection of points, one feature per
// visit, with the fields a map layer filters and colors by.
func GeoJSON(visits []*visit.Visit) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, v := range visits {
		f := geojson.NewPointFeature([]float64{v.Location.Longitude, v.Location.Latitude})
		f.ID = v.ID
		f.SetProperty("type", string(v.Type))
		f.SetProperty("neighborhood", v.Neighborhood)
		f.SetProperty("agent_id", v.AgentID)
		f.SetProperty("timestamp", v.Timestamp)
		f.SetProperty("positive", IsPositive(v))

		switch v.Type {
		case visit.Routine:
			if v.Routine != nil {
				f.SetProperty("risk_level", string(v.Routine.RiskLevel))
			}
		case visit.LIRAa:
			if v.LIRAa != nil {
				f.SetProperty("liraa_index", v.LIRAa.LIRAaIndex)
				f.SetProperty("property_type", string(v.LIRAa.PropertyType))
			}
		}
		fc.AddFeature(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding geojson: %w", err)
	}
	return data, nil
}
