package activity

import (
	"encoding/json"
	"fmt"
)

// samsungExercise mirrors a Samsung Health exercise record. Times are epoch
// milliseconds, distance is metres, duration is milliseconds and mean_speed
// is metres per second. Exercise types are numeric codes rather than names.
type samsungExercise struct {
	DataUUID     string  `json:"datauuid"`
	Title        string  `json:"title"`
	ExerciseType int     `json:"exercise_type"`
	StartTime    int64   `json:"start_time"`
	EndTime      int64   `json:"end_time"`
	Distance     float64 `json:"distance"`
	Duration     float64 `json:"duration"`
	MeanSpeed    float64 `json:"mean_speed"`
}

// Samsung Health exercise type codes for the sessions this app understands.
var samsungTypes = map[int]Type{
	1001:  TypeWalking,
	1002:  TypeRunning,
	11007: TypeCycling,
}

type samsungHealthNormalizer struct{}

func (samsungHealthNormalizer) Normalize(raw json.RawMessage) (Activity, error) {
	var payload samsungExercise
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Activity{}, fmt.Errorf("activity: decode samsung health payload: %w", err)
	}

	durationSec := payload.Duration / 1000
	if durationSec <= 0 && payload.EndTime > payload.StartTime {
		durationSec = float64(payload.EndTime-payload.StartTime) / 1000
	}

	distanceKm := kilometers(payload.Distance)
	speedKmh := payload.MeanSpeed * 3.6
	if payload.MeanSpeed <= 0 {
		speedKmh = deriveSpeedKmh(distanceKm, durationSec)
	}

	activityType, ok := samsungTypes[payload.ExerciseType]
	if !ok {
		activityType = TypeOther
	}

	// Samsung exports carry no timezone, so local time duplicates UTC.
	dateUTC := formatMillisUTC(payload.StartTime)

	return Activity{
		ID:              buildID(SourceSamsungHealth, payload.DataUUID),
		ExternalID:      payload.DataUUID,
		Source:          SourceSamsungHealth,
		Name:            displayName(payload.Title, activityType),
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
