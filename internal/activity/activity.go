package activity

// Source identifies the third-party system an activity record came from.
type Source string

const (
	SourceStrava        Source = "strava"
	SourceGoogleFit     Source = "google_fit"
	SourceFitbit        Source = "fitbit"
	SourceSamsungHealth Source = "samsung_health"
	SourceAppleHealth   Source = "apple_health"
)

// Type is the canonical classification of an exercise session.
type Type string

const (
	TypeRunning Type = "RUNNING"
	TypeCycling Type = "CYCLING"
	TypeWalking Type = "WALKING"
	TypeOther   Type = "OTHER"
)

// UnitsMetric is the only unit system emitted by normalization.
const UnitsMetric = "metric"

// Location describes where a session took place when the provider supplies it.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Activity is the canonical representation of one exercise session,
// independent of which provider produced it. ID is deterministic from
// (Source, ExternalID) so re-normalizing the same raw record always yields
// the same identity.
type Activity struct {
	ID              string    `json:"id"`
	ExternalID      string    `json:"externalId"`
	Source          Source    `json:"source"`
	Name            string    `json:"name"`
	Type            Type      `json:"type"`
	DateUTC         string    `json:"dateUtc,omitempty"`
	DateLocal       string    `json:"dateLocal,omitempty"`
	DistanceKm      float64   `json:"distanceKm"`
	MovingTimeSec   float64   `json:"movingTimeSec"`
	ElapsedTimeSec  float64   `json:"elapsedTimeSec"`
	AverageSpeedKmh float64   `json:"averageSpeedKmh"`
	PacePerKm       *float64  `json:"pacePerKm,omitempty"`
	ElevationGainM  *float64  `json:"elevationGainM,omitempty"`
	RoutePolyline   string    `json:"routePolyline,omitempty"`
	Location        *Location `json:"location,omitempty"`
	Units           string    `json:"units"`
}
