package weather

import (
	"encoding/json"
	"fmt"
)

type zoneCollection struct {
	Features []struct {
		Properties struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"features"`
}

type zoneForecastDocument struct {
	Properties struct {
		Periods []Period `json:"periods"`
	} `json:"properties"`
}

// ParseZones extracts id and name of every feature of an NWS zone collection.
func ParseZones(raw []byte) ([]Zone, error) {
	var doc zoneCollection
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode zone collection: %w", err)
	}

	zones := make([]Zone, 0, len(doc.Features))
	for _, f := range doc.Features {
		if f.Properties.ID == "" {
			continue
		}
		zones = append(zones, Zone{
			ZoneID:   f.Properties.ID,
			ZoneName: f.Properties.Name,
		})
	}
	return zones, nil
}

// ParseForecast keeps number, name and detailed text of each forecast period.
func ParseForecast(raw []byte) (Forecast, error) {
	var doc zoneForecastDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Forecast{}, fmt.Errorf("decode zone forecast: %w", err)
	}

	periods := doc.Properties.Periods
	if periods == nil {
		periods = []Period{}
	}
	return Forecast{Periods: periods}, nil
}
