package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// stravaActivity mirrors the fields of Strava's SummaryActivity that feed
// the canonical shape. Distance is metres, times are seconds, average_speed
// is metres per second.
type stravaActivity struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	SportType          string  `json:"sport_type"`
	Distance           float64 `json:"distance"`
	MovingTime         float64 `json:"moving_time"`
	ElapsedTime        float64 `json:"elapsed_time"`
	StartDate          string  `json:"start_date"`
	StartDateLocal     string  `json:"start_date_local"`
	AverageSpeed       float64 `json:"average_speed"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	Map                struct {
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
	LocationCity    string `json:"location_city"`
	LocationState   string `json:"location_state"`
	LocationCountry string `json:"location_country"`
}

var stravaTypes = map[string]Type{
	"run":              TypeRunning,
	"trailrun":         TypeRunning,
	"virtualrun":       TypeRunning,
	"ride":             TypeCycling,
	"virtualride":      TypeCycling,
	"ebikeride":        TypeCycling,
	"gravelride":       TypeCycling,
	"mountainbikeride": TypeCycling,
	"walk":             TypeWalking,
	"hike":             TypeWalking,
}

type stravaNormalizer struct{}

func (stravaNormalizer) Normalize(raw json.RawMessage) (Activity, error) {
	var payload stravaActivity
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Activity{}, fmt.Errorf("activity: decode strava payload: %w", err)
	}

	externalID := strconv.FormatInt(payload.ID, 10)
	distanceKm := kilometers(payload.Distance)

	speedKmh := payload.AverageSpeed * 3.6
	if payload.AverageSpeed <= 0 {
		speedKmh = deriveSpeedKmh(distanceKm, payload.MovingTime)
	}

	// Newer records carry sport_type; type remains for backwards compatibility.
	rawType := payload.SportType
	if rawType == "" {
		rawType = payload.Type
	}
	activityType := classify(rawType, stravaTypes)

	dateLocal := payload.StartDateLocal
	if dateLocal == "" {
		dateLocal = payload.StartDate
	}

	normalized := Activity{
		ID:              buildID(SourceStrava, externalID),
		ExternalID:      externalID,
		Source:          SourceStrava,
		Name:            displayName(payload.Name, activityType),
		Type:            activityType,
		DateUTC:         payload.StartDate,
		DateLocal:       dateLocal,
		DistanceKm:      distanceKm,
		MovingTimeSec:   payload.MovingTime,
		ElapsedTimeSec:  payload.ElapsedTime,
		AverageSpeedKmh: speedKmh,
		PacePerKm:       paceMinPerKm(speedKmh),
		RoutePolyline:   payload.Map.SummaryPolyline,
		Units:           UnitsMetric,
	}

	if payload.TotalElevationGain > 0 {
		gain := payload.TotalElevationGain
		normalized.ElevationGainM = &gain
	}
	if payload.LocationCity != "" || payload.LocationState != "" || payload.LocationCountry != "" {
		normalized.Location = &Location{
			City:    payload.LocationCity,
			State:   payload.LocationState,
			Country: payload.LocationCountry,
		}
	}

	return normalized, nil
}
