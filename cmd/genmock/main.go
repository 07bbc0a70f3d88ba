// Command genmock generates deterministic mock Open-Meteo forecast documents
// for local runs and test fixtures. It writes one raw JSON file per (city,
// dataset), then runs the actual flatten and derive code over them and prints
// aggregate stats, so test assertions can be updated from real pipeline
// behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 2 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urbanaq/airq-etl/internal/domain"
)

var baseDate = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

// cityProfile skews the generated pollution levels so the fixture covers
// every AQI category and risk tier.
type cityProfile struct {
	name     string
	pm25Base float64
	tempBase float64
	gapEvery int // every n-th hour gets a null pm2_5, 0 for none
}

var profiles = []cityProfile{
	{name: "Delhi", pm25Base: 160, tempBase: 28, gapEvery: 7},
	{name: "Mumbai", pm25Base: 55, tempBase: 31},
	{name: "Bengaluru", pm25Base: 25, tempBase: 22, gapEvery: 11},
	{name: "Hyderabad", pm25Base: 70, tempBase: 29},
	{name: "Kolkata", pm25Base: 110, tempBase: 27},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for mock raw documents")
	days := flag.Int("days", 2, "forecast days per document")
	seed := flag.Int64("seed", 42, "PRNG seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	hours := *days * 24
	thresholds := domain.DefaultThresholds()

	var aqRecords []domain.AirQualityRecord
	var wxRecords []domain.WeatherRecord

	for _, p := range profiles {
		aqDoc := buildAirQualityDoc(rng, p, hours)
		wxDoc := buildWeatherDoc(rng, p, hours)

		if err := writeDoc(*out, p.name, domain.DatasetAirQuality, aqDoc); err != nil {
			return err
		}
		if err := writeDoc(*out, p.name, domain.DatasetWeather, wxDoc); err != nil {
			return err
		}

		// Run the actual pipeline transformation over the fixture.
		aq, err := domain.FlattenAirQuality(p.name, mustMarshal(aqDoc), thresholds)
		if err != nil {
			return fmt.Errorf("flatten air quality for %s: %w", p.name, err)
		}
		wx, err := domain.FlattenWeather(p.name, mustMarshal(wxDoc), thresholds)
		if err != nil {
			return fmt.Errorf("flatten weather for %s: %w", p.name, err)
		}
		aqRecords = append(aqRecords, aq...)
		wxRecords = append(wxRecords, wx...)
		log.Printf("%s: %d air-quality rows, %d weather rows", p.name, len(aq), len(wx))
	}

	printStats(aqRecords, wxRecords)
	return nil
}

func buildAirQualityDoc(rng *rand.Rand, p cityProfile, hours int) map[string]any {
	hourly := map[string]any{"time": hourlyTimes(hours)}

	for _, variable := range domain.AirQualityVariables {
		values := make([]any, hours)
		for h := 0; h < hours; h++ {
			if variable == "pm2_5" && p.gapEvery > 0 && h%p.gapEvery == 0 {
				values[h] = nil
				continue
			}
			values[h] = round1(variableLevel(rng, variable, p.pm25Base, h))
		}
		hourly[variable] = values
	}
	return map[string]any{"hourly": hourly}
}

func buildWeatherDoc(rng *rand.Rand, p cityProfile, hours int) map[string]any {
	times := hourlyTimes(hours)
	temps := make([]any, hours)
	humidity := make([]any, hours)
	wind := make([]any, hours)
	for h := 0; h < hours; h++ {
		// Simple diurnal swing around the city's base temperature.
		swing := 6.0 * diurnal(h%24)
		temps[h] = round1(p.tempBase + swing + rng.Float64()*2 - 1)
		humidity[h] = round1(55 + rng.Float64()*30)
		wind[h] = round1(4 + rng.Float64()*14)
	}
	return map[string]any{"hourly": map[string]any{
		"time":                 times,
		"temperature_2m":       temps,
		"relative_humidity_2m": humidity,
		"wind_speed_10m":       wind,
	}}
}

// variableLevel scales each pollutant off the city's PM2.5 base so severity
// scores stay internally consistent.
func variableLevel(rng *rand.Rand, variable string, pm25Base float64, hour int) float64 {
	jitter := 0.8 + rng.Float64()*0.4
	rush := 1.0
	if h := hour % 24; h >= 7 && h <= 10 || h >= 17 && h <= 20 {
		rush = 1.3
	}
	switch variable {
	case "pm2_5":
		return pm25Base * jitter * rush
	case "pm10":
		return pm25Base * 1.6 * jitter * rush
	case "carbon_monoxide":
		return pm25Base * 6 * jitter
	case "nitrogen_dioxide":
		return pm25Base * 0.3 * jitter * rush
	case "sulphur_dioxide":
		return pm25Base * 0.12 * jitter
	case "ozone":
		return 40 * jitter
	case "uv_index":
		if h := hour % 24; h >= 6 && h <= 18 {
			return 8 * diurnal(h) * jitter
		}
		return 0
	default:
		return pm25Base * jitter
	}
}

// diurnal maps an hour of day to 0..1, peaking mid-afternoon.
func diurnal(h int) float64 {
	d := float64(h-14) / 10
	if d < 0 {
		d = -d
	}
	if d > 1 {
		d = 1
	}
	return 1 - d
}

func hourlyTimes(hours int) []string {
	times := make([]string, hours)
	for h := 0; h < hours; h++ {
		times[h] = baseDate.Add(time.Duration(h) * time.Hour).Format("2006-01-02T15:04")
	}
	return times
}

func writeDoc(dir, city string, kind domain.DatasetKind, doc map[string]any) error {
	name := fmt.Sprintf("%s_%s_raw_mock.json", strings.ToLower(city), kind)
	path := filepath.Join(dir, name)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func printStats(aq []domain.AirQualityRecord, wx []domain.WeatherRecord) {
	aqiCounts := map[string]int{}
	riskCounts := map[string]int{}
	nullPM25 := 0
	for i := range aq {
		r := &aq[i]
		if r.PM25 == nil {
			nullPM25++
		}
		if r.AQICategory != nil {
			aqiCounts[*r.AQICategory]++
		}
		if r.Risk != nil {
			riskCounts[*r.Risk]++
		}
	}

	tempCounts := map[string]int{}
	for i := range wx {
		if wx[i].TempCategory != nil {
			tempCounts[*wx[i].TempCategory]++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Air-quality rows: %d (null pm2_5: %d)\n", len(aq), nullPM25)
	fmt.Printf("AQI: Good=%d, Moderate=%d, Unhealthy=%d, Very Unhealthy=%d, Hazardous=%d\n",
		aqiCounts[domain.AQIGood], aqiCounts[domain.AQIModerate], aqiCounts[domain.AQIUnhealthy],
		aqiCounts[domain.AQIVeryUnhealthy], aqiCounts[domain.AQIHazardous])
	fmt.Printf("Risk: Low=%d, Moderate=%d, High=%d\n",
		riskCounts[domain.RiskLow], riskCounts[domain.RiskModerate], riskCounts[domain.RiskHigh])
	fmt.Printf("Weather rows: %d\n", len(wx))
	fmt.Printf("Temp: very_cold=%d, cold=%d, mild=%d, warm=%d, hot=%d\n",
		tempCounts[domain.TempVeryCold], tempCounts[domain.TempCold], tempCounts[domain.TempMild],
		tempCounts[domain.TempWarm], tempCounts[domain.TempHot])
}
