package activity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// appleWorkout mirrors an exported HealthKit workout. Activity types are
// HKWorkoutActivityType constants, distance is metres and duration (when
// present) is seconds.
type appleWorkout struct {
	UUID          string  `json:"uuid"`
	Name          string  `json:"name"`
	ActivityType  string  `json:"workoutActivityType"`
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
	Duration      float64 `json:"duration"`
	TotalDistance float64 `json:"totalDistance"`
}

const appleTypePrefix = "hkworkoutactivitytype"

var appleTypes = map[string]Type{
	"running": TypeRunning,
	"cycling": TypeCycling,
	"walking": TypeWalking,
	"hiking":  TypeWalking,
}

type appleHealthNormalizer struct{}

func (appleHealthNormalizer) Normalize(raw json.RawMessage) (Activity, error) {
	var payload appleWorkout
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Activity{}, fmt.Errorf("activity: decode apple health payload: %w", err)
	}

	durationSec := payload.Duration
	if durationSec <= 0 {
		durationSec = durationBetween(payload.StartDate, payload.EndDate)
	}

	distanceKm := kilometers(payload.TotalDistance)
	speedKmh := deriveSpeedKmh(distanceKm, durationSec)

	rawType := strings.TrimPrefix(strings.ToLower(payload.ActivityType), appleTypePrefix)
	activityType := classify(rawType, appleTypes)

	return Activity{
		ID:              buildID(SourceAppleHealth, payload.UUID),
		ExternalID:      payload.UUID,
		Source:          SourceAppleHealth,
		Name:            displayName(payload.Name, activityType),
		Type:            activityType,
		DateUTC:         payload.StartDate,
		DateLocal:       payload.StartDate,
		DistanceKm:      distanceKm,
		MovingTimeSec:   durationSec,
		ElapsedTimeSec:  durationSec,
		AverageSpeedKmh: speedKmh,
		PacePerKm:       paceMinPerKm(speedKmh),
		Units:           UnitsMetric,
	}, nil
}
