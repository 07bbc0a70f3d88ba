package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanaq/airq-etl/internal/adapter/artifact"
	"github.com/urbanaq/airq-etl/internal/domain"
)

func TestArtifactAnalyzer_WritesSummaryArtifacts(t *testing.T) {
	generatedAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(generatedAt))
	t.Cleanup(func() { domain.SetClock(nil) })

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	pm25 := func(v float64) *float64 { return &v }
	moderate := domain.RiskModerate
	var aqRecords []domain.AirQualityRecord
	for hour := 0; hour < 4; hour++ {
		aqRecords = append(aqRecords, domain.AirQualityRecord{
			City: "Delhi",
			Time: time.Date(2025, 3, 14, hour, 0, 0, 0, time.UTC),
			Hour: hour,
			PM25: pm25(60 + float64(hour)*5),
			Risk: &moderate,
		})
	}
	aqStaged, err := store.WriteAirQualityCSV(aqRecords)
	require.NoError(t, err)

	temp := 18.4
	wxStaged, err := store.WriteWeatherCSV([]domain.WeatherRecord{
		{City: "Delhi", Time: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), TemperatureC: &temp},
	})
	require.NoError(t, err)

	a := NewArtifactAnalyzer(store, store, slog.Default())
	report, err := a.Analyze(context.Background(), []domain.StagedArtifact{aqStaged, wxStaged})
	require.NoError(t, err)

	assert.Equal(t, generatedAt, report.GeneratedAt)
	assert.NotEmpty(t, report.Metrics)

	// Processed copies, derived tables, and the summary land next to the charts.
	for _, name := range []string{
		"air_quality_processed.csv", "weather_processed.csv",
		"city_risk_distribution.csv", "pollution_trends.csv",
		"summary_metrics.csv", "summary.json",
	} {
		_, err := os.Stat(filepath.Join(store.ProcessedDir(), name))
		assert.NoError(t, err, name)
	}

	data, err := store.LatestSummary()
	require.NoError(t, err)
	var decoded domain.SummaryReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Metrics, decoded.Metrics)
}

func TestArtifactAnalyzer_MissingStagedFileIsAnError(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	a := NewArtifactAnalyzer(store, store, slog.Default())
	_, err = a.Analyze(context.Background(), []domain.StagedArtifact{
		{Kind: domain.DatasetAirQuality, Path: "missing.csv"},
	})
	require.Error(t, err)
}
