package pipeline

import (
	"context"
	"log/slog"

	"github.com/urbanaq/airq-etl/internal/analysis"
	"github.com/urbanaq/airq-etl/internal/domain"
)

// ProcessedStore writes the analysis artifacts.
type ProcessedStore interface {
	ProcessedDir() string
	WriteProcessedAirQualityCSV(records []domain.AirQualityRecord) (string, error)
	WriteProcessedWeatherCSV(records []domain.WeatherRecord) (string, error)
	WriteCityRiskDistributionCSV(rows []domain.RiskDistributionRow) (string, error)
	WritePollutionTrendsCSV(rows []domain.PollutionTrendRow) (string, error)
	WriteSummaryCSV(metrics []domain.Metric) (string, error)
	WriteSummaryJSON(report domain.SummaryReport) (string, error)
}

// ArtifactAnalyzer computes the run's summary from the staged tables. It
// deliberately reads the staged CSVs rather than the warehouse, so analysis
// works identically with or without a database configured.
type ArtifactAnalyzer struct {
	reader StagedReader
	store  ProcessedStore
	logger *slog.Logger
}

// NewArtifactAnalyzer creates the analyze stage.
func NewArtifactAnalyzer(reader StagedReader, store ProcessedStore, logger *slog.Logger) *ArtifactAnalyzer {
	return &ArtifactAnalyzer{reader: reader, store: store, logger: logger}
}

// Analyze summarizes the staged tables, renders charts, and writes the
// processed artifacts. Chart failures are reported, not fatal.
func (a *ArtifactAnalyzer) Analyze(ctx context.Context, staged []domain.StagedArtifact) (domain.SummaryReport, error) {
	var aqRecords []domain.AirQualityRecord
	var wxRecords []domain.WeatherRecord

	for _, art := range staged {
		if ctx.Err() != nil {
			return domain.SummaryReport{}, ctx.Err()
		}
		switch art.Kind {
		case domain.DatasetAirQuality:
			records, err := a.reader.ReadAirQualityCSV(art.Path)
			if err != nil {
				return domain.SummaryReport{}, err
			}
			aqRecords = append(aqRecords, records...)
		case domain.DatasetWeather:
			records, err := a.reader.ReadWeatherCSV(art.Path)
			if err != nil {
				return domain.SummaryReport{}, err
			}
			wxRecords = append(wxRecords, records...)
		}
	}

	report := domain.SummaryReport{
		GeneratedAt: domain.Now().UTC(),
		Metrics:     analysis.Summarize(aqRecords, wxRecords),
	}

	charts := analysis.RenderCharts(a.store.ProcessedDir(), aqRecords)
	report.Charts = charts.Rendered
	report.ChartFailures = charts.Failures

	if len(aqRecords) > 0 {
		if _, err := a.store.WriteProcessedAirQualityCSV(aqRecords); err != nil {
			return report, err
		}
		if _, err := a.store.WriteCityRiskDistributionCSV(analysis.CityRiskDistribution(aqRecords)); err != nil {
			return report, err
		}
		if _, err := a.store.WritePollutionTrendsCSV(analysis.PollutionTrends(aqRecords)); err != nil {
			return report, err
		}
	}
	if len(wxRecords) > 0 {
		if _, err := a.store.WriteProcessedWeatherCSV(wxRecords); err != nil {
			return report, err
		}
	}
	if _, err := a.store.WriteSummaryCSV(report.Metrics); err != nil {
		return report, err
	}
	if _, err := a.store.WriteSummaryJSON(report); err != nil {
		return report, err
	}
	return report, nil
}
