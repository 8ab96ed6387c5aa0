package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// fitbitActivity mirrors a Fitbit activity-log record. Duration is
// milliseconds, distance is kilometres and speed is already km/h.
type fitbitActivity struct {
	LogID         int64   `json:"logId"`
	ActivityName  string  `json:"activityName"`
	Duration      float64 `json:"duration"`
	Distance      float64 `json:"distance"`
	StartTime     string  `json:"startTime"`
	Speed         float64 `json:"speed"`
	ElevationGain float64 `json:"elevationGain"`
}

var fitbitTypes = map[string]Type{
	"run":             TypeRunning,
	"running":         TypeRunning,
	"treadmill":       TypeRunning,
	"bike":            TypeCycling,
	"biking":          TypeCycling,
	"outdoor bike":    TypeCycling,
	"stationary bike": TypeCycling,
	"walk":            TypeWalking,
	"walking":         TypeWalking,
	"hike":            TypeWalking,
}

type fitbitNormalizer struct{}

func (fitbitNormalizer) Normalize(raw json.RawMessage) (Activity, error) {
	var payload fitbitActivity
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Activity{}, fmt.Errorf("activity: decode fitbit payload: %w", err)
	}

	externalID := strconv.FormatInt(payload.LogID, 10)
	durationSec := payload.Duration / 1000
	distanceKm := payload.Distance

	speedKmh := payload.Speed
	if speedKmh <= 0 {
		speedKmh = deriveSpeedKmh(distanceKm, durationSec)
	}

	activityType := classify(payload.ActivityName, fitbitTypes)

	// startTime carries the athlete's UTC offset, which gives a true local
	// timestamp alongside the UTC one.
	dateUTC := payload.StartTime
	dateLocal := payload.StartTime
	if start, err := time.Parse(time.RFC3339, payload.StartTime); err == nil {
		dateUTC = start.UTC().Format(time.RFC3339)
	}

	normalized := Activity{
		ID:              buildID(SourceFitbit, externalID),
		ExternalID:      externalID,
		Source:          SourceFitbit,
		Name:            displayName(payload.ActivityName, activityType),
		Type:            activityType,
		DateUTC:         dateUTC,
		DateLocal:       dateLocal,
		DistanceKm:      distanceKm,
		MovingTimeSec:   durationSec,
		ElapsedTimeSec:  durationSec,
		AverageSpeedKmh: speedKmh,
		PacePerKm:       paceMinPerKm(speedKmh),
		Units:           UnitsMetric,
	}

	if payload.ElevationGain > 0 {
		gain := payload.ElevationGain
		normalized.ElevationGainM = &gain
	}

	return normalized, nil
}
