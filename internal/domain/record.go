package domain

import "time"

// DatasetKind identifies which provider endpoint a record came from.
type DatasetKind string

const (
	DatasetAirQuality DatasetKind = "air_quality"
	DatasetWeather    DatasetKind = "weather"
)

// Location is a monitored city. Coordinates may be absent when the city is
// configured by name only; the geocoding fallback resolves them before
// extraction.
type Location struct {
	Name string
	Lat  float64
	Lon  float64
}

// HasCoords reports whether the location carries usable coordinates.
// (0, 0) is reserved as "unresolved": a city configured by name only parses
// to the zero coordinates and is routed through geocoding. The real (0, 0)
// point lies in the Gulf of Guinea and is never a monitored city.
func (l Location) HasCoords() bool {
	return l.Lat != 0 || l.Lon != 0
}

// AirQualityRecord is one (city, hour) row of the cleaned air-quality table.
// Measurement fields are pointers: nil marks a value missing at the source.
// Derived fields stay nil whenever an input they depend on is nil; a missing
// measurement never fails the row.
type AirQualityRecord struct {
	City string
	Time time.Time
	Hour int

	PM10            *float64
	PM25            *float64
	CarbonMonoxide  *float64
	NitrogenDioxide *float64
	SulphurDioxide  *float64
	Ozone           *float64
	UVIndex         *float64

	AQICategory   *string
	SeverityScore *float64
	Risk          *string
}

// WeatherRecord is one (city, hour) row of the cleaned weather table.
// Wind speed is km/h as delivered by the provider.
type WeatherRecord struct {
	City string
	Time time.Time
	Hour int

	TemperatureC     *float64
	RelativeHumidity *float64
	WindSpeedKMH     *float64

	TempCategory *string
	FeelsLikeC   *float64
}

// RawArtifact points at one verbatim provider response on disk.
type RawArtifact struct {
	City string
	Kind DatasetKind
	Path string
}

// ExtractFailure records a (city, dataset) fetch that exhausted its retry
// budget.
type ExtractFailure struct {
	City string
	Kind DatasetKind
	Err  error
}

// ExtractReport is the extract stage's output: the raw artifacts written
// plus the locations that failed.
type ExtractReport struct {
	Artifacts []RawArtifact
	Failures  []ExtractFailure
}

// StagedArtifact points at one cleaned CSV together with its row count.
type StagedArtifact struct {
	Kind DatasetKind
	Path string
	Rows int
}

// BatchError reports a store write failure with the offset range of the
// affected rows.
type BatchError struct {
	Start int
	End   int
	Err   error
}

// LoadReport summarizes one table's load: rows committed, rows skipped
// after a failed retry, and the batches that failed.
type LoadReport struct {
	Kind          DatasetKind
	Table         string
	Loaded        int
	Skipped       int
	FailedBatches []BatchError
}

// RiskDistributionRow is one (city, risk tier) cell of the per-city risk
// breakdown: how many of the city's classified hours fall in the tier, and
// what share of the city that is.
type RiskDistributionRow struct {
	City       string
	Risk       string
	Count      int
	Percentage float64
}

// PollutionTrendRow is one (timestamp, city) point of the key-pollutant
// trend table. Pointers carry source nulls through unchanged.
type PollutionTrendRow struct {
	Time  time.Time
	City  string
	PM25  *float64
	PM10  *float64
	Ozone *float64
}

// Metric is one row of the machine-readable summary.
type Metric struct {
	Name   string  `json:"metric"`
	Value  string  `json:"value"`
	Detail float64 `json:"detail"`
}

// SummaryReport holds the aggregate statistics and chart artifacts of one
// analysis run. It is regenerated in full on every run, never updated
// incrementally.
type SummaryReport struct {
	GeneratedAt   time.Time `json:"generated_at"`
	Metrics       []Metric  `json:"metrics"`
	Charts        []string  `json:"charts,omitempty"`
	ChartFailures []string  `json:"chart_failures,omitempty"`
}
