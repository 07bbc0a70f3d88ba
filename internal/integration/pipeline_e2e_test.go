package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanaq/airq-etl/internal/adapter/artifact"
	"github.com/urbanaq/airq-etl/internal/adapter/openmeteo"
	"github.com/urbanaq/airq-etl/internal/domain"
	"github.com/urbanaq/airq-etl/internal/observability"
	"github.com/urbanaq/airq-etl/internal/pipeline"
)

// fakeProvider serves canned Open-Meteo responses for both datasets plus
// geocoding searches.
type fakeProvider struct {
	aqCalls int
	wxCalls int
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/air-quality", func(w http.ResponseWriter, r *http.Request) {
		f.aqCalls++
		fmt.Fprint(w, airQualityResponse)
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.wxCalls++
		fmt.Fprint(w, weatherResponse)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"latitude":26.9124,"longitude":75.7873}]}`)
	})
	return mux
}

const airQualityResponse = `{
	"hourly": {
		"time": ["2025-03-14T00:00", "2025-03-14T01:00", "2025-03-14T02:00"],
		"pm10": [101.5, 98.2, null],
		"pm2_5": [62.3, 58.7, 210.4],
		"carbon_monoxide": [411.0, 398.0, 602.0],
		"nitrogen_dioxide": [18.2, 16.5, 40.1],
		"sulphur_dioxide": [7.9, 7.4, 12.2],
		"ozone": [44.0, 47.0, 31.0],
		"uv_index": [0.0, 0.0, 0.0]
	}
}`

const weatherResponse = `{
	"hourly": {
		"time": ["2025-03-14T00:00", "2025-03-14T01:00", "2025-03-14T02:00"],
		"temperature_2m": [18.4, 17.9, 17.2],
		"relative_humidity_2m": [72.0, 75.0, 78.0],
		"wind_speed_10m": [6.1, 5.4, 4.8]
	}
}`

func TestPipeline_EndToEnd(t *testing.T) {
	provider := &fakeProvider{}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	client := openmeteo.NewClient(openmeteo.Config{
		AirQualityBaseURL: srv.URL + "/v1/air-quality",
		WeatherBaseURL:    srv.URL + "/v1/forecast",
		GeocodingBaseURL:  srv.URL + "/v1/search",
		MaxRetries:        2,
		Timeout:           5 * time.Second,
	}, slog.Default())
	geocoder := openmeteo.NewCachedGeocoder(client, 16)

	dataDir := t.TempDir()
	store, err := artifact.NewStore(dataDir)
	require.NoError(t, err)

	logger := slog.Default()
	locations := []domain.Location{
		{Name: "Delhi", Lat: 28.7041, Lon: 77.1025},
		{Name: "Jaipur"}, // resolved via the geocoding endpoint
	}

	p := pipeline.New(
		pipeline.NewFetchExtractor(client, geocoder, store, locations, 1, 0, logger),
		pipeline.NewCSVTransformer(store, domain.DefaultThresholds(), logger),
		pipeline.NewSkipLoader(logger),
		pipeline.NewArtifactAnalyzer(store, store, logger),
		logger,
		observability.NewMetricsForTesting(),
	)

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before the first run")
	require.NoError(t, p.Run(context.Background()))
	assert.NoError(t, p.CheckReadiness(context.Background()))

	assert.Equal(t, 2, provider.aqCalls)
	assert.Equal(t, 2, provider.wxCalls)

	// Raw artifacts: one per (city, dataset).
	rawFiles, err := os.ReadDir(filepath.Join(dataDir, "raw"))
	require.NoError(t, err)
	assert.Len(t, rawFiles, 4)

	// Staged tables carry one row per (city, hour) with derived columns.
	stagedDir := filepath.Join(dataDir, "staged")
	stagedFiles, err := os.ReadDir(stagedDir)
	require.NoError(t, err)
	require.Len(t, stagedFiles, 2)

	var aqRecords []domain.AirQualityRecord
	for _, f := range stagedFiles {
		if !strings.HasPrefix(f.Name(), "air_quality_transformed_") {
			continue
		}
		aqRecords, err = store.ReadAirQualityCSV(filepath.Join(stagedDir, f.Name()))
		require.NoError(t, err)
	}
	require.Len(t, aqRecords, 6, "3 hours for each of 2 cities")

	byCity := map[string]int{}
	for _, r := range aqRecords {
		byCity[r.City]++
		require.NotNil(t, r.AQICategory)
		require.NotNil(t, r.Risk)
	}
	assert.Equal(t, map[string]int{"Delhi": 3, "Jaipur": 3}, byCity)

	// Hour 2 has a null pm10, so its severity must propagate the null.
	for _, r := range aqRecords {
		if r.Hour == 2 {
			assert.Nil(t, r.PM10)
			assert.Nil(t, r.SeverityScore)
			assert.Equal(t, domain.AQIVeryUnhealthy, *r.AQICategory)
		} else {
			assert.NotNil(t, r.SeverityScore)
		}
	}

	// Analysis artifacts exist and the summary is well formed.
	summaryData, err := store.LatestSummary()
	require.NoError(t, err)
	var summary domain.SummaryReport
	require.NoError(t, json.Unmarshal(summaryData, &summary))
	assert.NotEmpty(t, summary.Metrics)
	assert.False(t, summary.GeneratedAt.IsZero())

	for _, name := range []string{"air_quality_processed.csv", "weather_processed.csv", "summary_metrics.csv"} {
		_, err := os.Stat(filepath.Join(store.ProcessedDir(), name))
		assert.NoError(t, err, name)
	}
	assert.NotEmpty(t, summary.Charts)
}

func TestPipeline_EndToEnd_ProviderDownFailsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := openmeteo.NewClient(openmeteo.Config{
		AirQualityBaseURL: srv.URL + "/v1/air-quality",
		WeatherBaseURL:    srv.URL + "/v1/forecast",
		GeocodingBaseURL:  srv.URL + "/v1/search",
		MaxRetries:        1,
		Timeout:           2 * time.Second,
	}, slog.Default())

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	logger := slog.Default()
	p := pipeline.New(
		pipeline.NewFetchExtractor(client, openmeteo.NewCachedGeocoder(client, 16), store,
			[]domain.Location{{Name: "Delhi", Lat: 28.7041, Lon: 77.1025}}, 1, 0, logger),
		pipeline.NewCSVTransformer(store, domain.DefaultThresholds(), logger),
		pipeline.NewSkipLoader(logger),
		pipeline.NewArtifactAnalyzer(store, store, logger),
		logger,
		observability.NewMetricsForTesting(),
	)

	err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract:")
	assert.Error(t, p.CheckReadiness(context.Background()))
}
