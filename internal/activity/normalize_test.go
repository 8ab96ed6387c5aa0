package activity

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeRejectsUnknownSource(t *testing.T) {
	_, err := Normalize(Source("UNKNOWN_SOURCE"), json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownActivitySource) {
		t.Fatalf("expected ErrUnknownActivitySource, got %v", err)
	}
}

func TestNormalizeDispatchesToEveryRegisteredSource(t *testing.T) {
	payloads := map[Source]json.RawMessage{
		SourceStrava:        json.RawMessage(`{"id": 1, "type": "Run", "distance": 1000, "moving_time": 600}`),
		SourceGoogleFit:     json.RawMessage(`{"id": "s1", "activityType": "running", "startTimeMillis": "1704103200000", "endTimeMillis": "1704106800000", "distanceMeters": 10000}`),
		SourceFitbit:        json.RawMessage(`{"logId": 2, "activityName": "Run", "duration": 600000, "distance": 1.5}`),
		SourceSamsungHealth: json.RawMessage(`{"datauuid": "u1", "exercise_type": 1002, "start_time": 1704103200000, "end_time": 1704106800000, "distance": 1000}`),
		SourceAppleHealth:   json.RawMessage(`{"uuid": "w1", "workoutActivityType": "HKWorkoutActivityTypeRunning", "startDate": "2024-01-01T10:00:00Z", "endDate": "2024-01-01T10:10:00Z", "totalDistance": 1000}`),
	}

	for source, raw := range payloads {
		normalized, err := Normalize(source, raw)
		if err != nil {
			t.Fatalf("normalize %s failed: %v", source, err)
		}
		if normalized.Source != source {
			t.Fatalf("source %s produced activity tagged %s", source, normalized.Source)
		}
		if normalized.Type != TypeRunning {
			t.Fatalf("source %s classified as %s, want RUNNING", source, normalized.Type)
		}
	}
}

func TestNormalizeAllPreservesOrderAndFailsFast(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"id": 1, "type": "Run", "distance": 1000, "moving_time": 600}`),
		json.RawMessage(`{"id": 2, "type": "Ride", "distance": 2000, "moving_time": 600}`),
	}

	normalized, err := NormalizeAll(SourceStrava, raws)
	if err != nil {
		t.Fatalf("normalize all failed: %v", err)
	}
	if len(normalized) != 2 || normalized[0].ID != "strava:1" || normalized[1].ID != "strava:2" {
		t.Fatalf("unexpected batch result: %+v", normalized)
	}

	if _, err := NormalizeAll(SourceStrava, []json.RawMessage{json.RawMessage(`not json`)}); err == nil {
		t.Fatalf("expected malformed payload to fail the batch")
	}
}

func TestPaceGuardNeverEmitsInfinity(t *testing.T) {
	for _, speed := range []float64{0, -1} {
		if pace := paceMinPerKm(speed); pace != nil {
			t.Fatalf("expected nil pace for speed %v, got %v", speed, *pace)
		}
	}
	pace := paceMinPerKm(12)
	if pace == nil || !almostEqual(*pace, 5.0) {
		t.Fatalf("expected 5 min/km at 12 km/h, got %v", pace)
	}
}

func TestDurationBetweenToleratesMissingTimestamps(t *testing.T) {
	if got := durationBetween("2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z"); got != 3600 {
		t.Fatalf("expected 3600, got %v", got)
	}
	if got := durationBetween("", "2024-01-01T11:00:00Z"); got != 0 {
		t.Fatalf("expected 0 for missing start, got %v", got)
	}
	if got := durationBetween("2024-01-01T10:00:00Z", "garbage"); got != 0 {
		t.Fatalf("expected 0 for malformed end, got %v", got)
	}
}
