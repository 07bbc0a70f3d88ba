// Package domain models hourly air-quality and weather observations.
//
// Raw documents come from the Open-Meteo forecast APIs. Each response
// carries a top-level "hourly" object of parallel arrays: one "time" array
// plus one value array per requested variable, indexed by hour. Flattening
// turns that structure into one record per (city, timestamp), padding
// shorter arrays with nulls, dropping rows where every measured variable is
// null, and collapsing duplicate timestamps to the first occurrence.
//
// Measurements are nullable throughout: a null at the source propagates
// through every derived field that depends on it and never fails the row.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Hourly variables requested from the provider, in staged-column order.
var (
	AirQualityVariables = []string{
		"pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide",
		"sulphur_dioxide", "ozone", "uv_index",
	}
	WeatherVariables = []string{
		"temperature_2m", "relative_humidity_2m", "wind_speed_10m",
	}
)

// hourlyTimeLayout is Open-Meteo's ISO-8601 hour format without a zone
// suffix; the client always requests timezone=UTC.
const hourlyTimeLayout = "2006-01-02T15:04"

// forecastPayload mirrors the provider's response envelope.
type forecastPayload struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// hourlySeries is the decoded hourly block: timestamps plus one nullable
// value column per variable, padded to the timestamp count.
type hourlySeries struct {
	times  []time.Time
	values map[string][]*float64
}

// decodeHourly parses a raw payload into an hourlySeries for the given
// variable set. Value arrays shorter than the time array are padded with
// nil; longer ones are truncated, since rows without a timestamp cannot
// satisfy the (city, timestamp) key.
func decodeHourly(payload []byte, variables []string) (hourlySeries, error) {
	var doc forecastPayload
	if err := json.Unmarshal(payload, &doc); err != nil {
		return hourlySeries{}, fmt.Errorf("decode raw payload: %w", err)
	}
	if len(doc.Hourly) == 0 {
		return hourlySeries{}, fmt.Errorf("raw payload has no hourly block")
	}

	var rawTimes []string
	if raw, ok := doc.Hourly["time"]; ok {
		if err := json.Unmarshal(raw, &rawTimes); err != nil {
			return hourlySeries{}, fmt.Errorf("decode hourly times: %w", err)
		}
	}
	if len(rawTimes) == 0 {
		return hourlySeries{}, fmt.Errorf("raw payload has no hourly timestamps")
	}

	times := make([]time.Time, len(rawTimes))
	for i, s := range rawTimes {
		t, err := parseHourTime(s)
		if err != nil {
			return hourlySeries{}, fmt.Errorf("parse hourly timestamp %q: %w", s, err)
		}
		times[i] = t
	}

	values := make(map[string][]*float64, len(variables))
	for _, name := range variables {
		var col []*float64
		if raw, ok := doc.Hourly[name]; ok {
			if err := json.Unmarshal(raw, &col); err != nil {
				return hourlySeries{}, fmt.Errorf("decode hourly %s: %w", name, err)
			}
		}
		values[name] = padColumn(col, len(times))
	}

	return hourlySeries{times: times, values: values}, nil
}

func parseHourTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(hourlyTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func padColumn(col []*float64, n int) []*float64 {
	if len(col) == n {
		return col
	}
	if len(col) > n {
		return col[:n]
	}
	padded := make([]*float64, n)
	copy(padded, col)
	return padded
}

// FlattenAirQuality turns one city's raw air-quality response into cleaned
// rows: one row per hour present in the source arrays, derived fields
// filled, every row carrying the originating city.
func FlattenAirQuality(city string, payload []byte, t Thresholds) ([]AirQualityRecord, error) {
	series, err := decodeHourly(payload, AirQualityVariables)
	if err != nil {
		return nil, fmt.Errorf("flatten air quality for %s: %w", city, err)
	}

	records := make([]AirQualityRecord, 0, len(series.times))
	seen := make(map[time.Time]bool, len(series.times))
	for i, ts := range series.times {
		if seen[ts] {
			continue
		}
		seen[ts] = true

		r := AirQualityRecord{
			City:            city,
			Time:            ts,
			Hour:            ts.Hour(),
			PM10:            series.values["pm10"][i],
			PM25:            series.values["pm2_5"][i],
			CarbonMonoxide:  series.values["carbon_monoxide"][i],
			NitrogenDioxide: series.values["nitrogen_dioxide"][i],
			SulphurDioxide:  series.values["sulphur_dioxide"][i],
			Ozone:           series.values["ozone"][i],
			UVIndex:         series.values["uv_index"][i],
		}
		if allNil(r.PM10, r.PM25, r.CarbonMonoxide, r.NitrogenDioxide, r.SulphurDioxide, r.Ozone, r.UVIndex) {
			continue
		}
		records = append(records, DeriveAirQuality(r, t))
	}
	return records, nil
}

// FlattenWeather turns one city's raw weather response into cleaned rows.
func FlattenWeather(city string, payload []byte, t Thresholds) ([]WeatherRecord, error) {
	series, err := decodeHourly(payload, WeatherVariables)
	if err != nil {
		return nil, fmt.Errorf("flatten weather for %s: %w", city, err)
	}

	records := make([]WeatherRecord, 0, len(series.times))
	seen := make(map[time.Time]bool, len(series.times))
	for i, ts := range series.times {
		if seen[ts] {
			continue
		}
		seen[ts] = true

		r := WeatherRecord{
			City:             city,
			Time:             ts,
			Hour:             ts.Hour(),
			TemperatureC:     series.values["temperature_2m"][i],
			RelativeHumidity: series.values["relative_humidity_2m"][i],
			WindSpeedKMH:     series.values["wind_speed_10m"][i],
		}
		if allNil(r.TemperatureC, r.RelativeHumidity, r.WindSpeedKMH) {
			continue
		}
		records = append(records, DeriveWeather(r, t))
	}
	return records, nil
}

func allNil(vals ...*float64) bool {
	for _, v := range vals {
		if v != nil {
			return false
		}
	}
	return true
}
