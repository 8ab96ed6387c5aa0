package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// googleFitSession mirrors a Google Fit sessions record. The Sessions API
// reports start and end as epoch-millisecond strings and distance in metres.
type googleFitSession struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ActivityType    string  `json:"activityType"`
	StartTimeMillis string  `json:"startTimeMillis"`
	EndTimeMillis   string  `json:"endTimeMillis"`
	DistanceMeters  float64 `json:"distanceMeters"`
}

var googleFitTypes = map[string]Type{
	"running":           TypeRunning,
	"jogging":           TypeRunning,
	"treadmill":         TypeRunning,
	"biking":            TypeCycling,
	"cycling":           TypeCycling,
	"road_biking":       TypeCycling,
	"mountain_biking":   TypeCycling,
	"walking":           TypeWalking,
	"hiking":            TypeWalking,
	"nordic_walking":    TypeWalking,
	"treadmill_walking": TypeWalking,
}

type googleFitNormalizer struct{}

func (googleFitNormalizer) Normalize(raw json.RawMessage) (Activity, error) {
	var payload googleFitSession
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Activity{}, fmt.Errorf("activity: decode google fit payload: %w", err)
	}

	startMillis := parseMillis(payload.StartTimeMillis)
	endMillis := parseMillis(payload.EndTimeMillis)

	var durationSec float64
	if endMillis > startMillis {
		durationSec = float64(endMillis-startMillis) / 1000
	}

	distanceKm := kilometers(payload.DistanceMeters)
	speedKmh := deriveSpeedKmh(distanceKm, durationSec)
	activityType := classify(payload.ActivityType, googleFitTypes)

	// Sessions carry no timezone, so local time duplicates UTC.
	dateUTC := formatMillisUTC(startMillis)

	return Activity{
		ID:              buildID(SourceGoogleFit, payload.ID),
		ExternalID:      payload.ID,
		Source:          SourceGoogleFit,
		Name:            displayName(payload.Name, activityType),
		Type:            activityType,
		DateUTC:         dateUTC,
		DateLocal:       dateUTC,
		DistanceKm:      distanceKm,
		MovingTimeSec:   durationSec,
		ElapsedTimeSec:  durationSec,
		AverageSpeedKmh: speedKmh,
		PacePerKm:       paceMinPerKm(speedKmh),
		Units:           UnitsMetric,
	}, nil
}

func parseMillis(value string) int64 {
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return millis
}

func formatMillisUTC(millis int64) string {
	if millis <= 0 {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}
