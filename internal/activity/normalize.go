package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrUnknownActivitySource indicates a payload was tagged with a source that
// has no registered normalizer. This is a programming or configuration error
// and is never silently defaulted.
var ErrUnknownActivitySource = errors.New("activity: unknown activity source")

// Normalizer converts one provider's raw payload into the canonical Activity.
// Implementations are pure: no I/O, no clocks, fully deterministic.
type Normalizer interface {
	Normalize(raw json.RawMessage) (Activity, error)
}

var normalizers = map[Source]Normalizer{
	SourceStrava:        stravaNormalizer{},
	SourceGoogleFit:     googleFitNormalizer{},
	SourceFitbit:        fitbitNormalizer{},
	SourceSamsungHealth: samsungHealthNormalizer{},
	SourceAppleHealth:   appleHealthNormalizer{},
}

// Normalize dispatches a raw provider payload to the normalizer registered
// for its source.
func Normalize(source Source, raw json.RawMessage) (Activity, error) {
	normalizer, ok := normalizers[source]
	if !ok {
		return Activity{}, fmt.Errorf("%w: %q", ErrUnknownActivitySource, source)
	}
	return normalizer.Normalize(raw)
}

// NormalizeAll converts a batch of raw payloads from a single source,
// preserving order. The first failing payload aborts the batch.
func NormalizeAll(source Source, raws []json.RawMessage) ([]Activity, error) {
	out := make([]Activity, 0, len(raws))
	for _, raw := range raws {
		normalized, err := Normalize(source, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	return out, nil
}

func buildID(source Source, externalID string) string {
	return string(source) + ":" + externalID
}

func kilometers(meters float64) float64 {
	return meters / 1000
}

// durationBetween returns end minus start in seconds, or 0 when either
// timestamp is missing or unparseable.
func durationBetween(startISO, endISO string) float64 {
	start, err := time.Parse(time.RFC3339, startISO)
	if err != nil {
		return 0
	}
	end, err := time.Parse(time.RFC3339, endISO)
	if err != nil {
		return 0
	}
	return end.Sub(start).Seconds()
}

// deriveSpeedKmh computes average speed from distance and duration for
// providers that do not report speed directly.
func deriveSpeedKmh(distanceKm, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	return distanceKm / (durationSec / 3600)
}

// paceMinPerKm returns minutes per kilometre, or nil when average speed is
// zero, negative or not a finite number. Callers must never see Inf or NaN.
func paceMinPerKm(speedKmh float64) *float64 {
	if speedKmh <= 0 || math.IsNaN(speedKmh) || math.IsInf(speedKmh, 0) {
		return nil
	}
	pace := 60 / speedKmh
	return &pace
}

// classify matches a provider's raw activity-type string against a lookup
// table, case-insensitively. Unmatched or empty values map to TypeOther.
func classify(rawType string, table map[string]Type) Type {
	if canonical, ok := table[strings.ToLower(strings.TrimSpace(rawType))]; ok {
		return canonical
	}
	return TypeOther
}

// displayName returns the provider-supplied title, or a generated default
// based on the canonical type.
func displayName(name string, activityType Type) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	switch activityType {
	case TypeRunning:
		return "Running"
	case TypeCycling:
		return "Cycling"
	case TypeWalking:
		return "Walking"
	default:
		return "Workout"
	}
}
