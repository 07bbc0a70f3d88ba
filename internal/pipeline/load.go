package pipeline

import (
	"context"
	"log/slog"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// RecordStore commits cleaned records to the warehouse.
type RecordStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertAirQuality(ctx context.Context, records []domain.AirQualityRecord) (domain.LoadReport, error)
	UpsertWeather(ctx context.Context, records []domain.WeatherRecord) (domain.LoadReport, error)
}

// StagedReader loads the cleaned tables back from staged artifacts.
type StagedReader interface {
	ReadAirQualityCSV(path string) ([]domain.AirQualityRecord, error)
	ReadWeatherCSV(path string) ([]domain.WeatherRecord, error)
}

// StoreLoader upserts every staged table into the warehouse. Re-running a
// window is safe: rows are keyed on (city, ts) and updated in place.
type StoreLoader struct {
	store  RecordStore
	reader StagedReader
	logger *slog.Logger
}

// NewStoreLoader creates the load stage.
func NewStoreLoader(store RecordStore, reader StagedReader, logger *slog.Logger) *StoreLoader {
	return &StoreLoader{store: store, reader: reader, logger: logger}
}

// LoadAll ensures the schema exists and upserts each staged table.
func (l *StoreLoader) LoadAll(ctx context.Context, staged []domain.StagedArtifact) ([]domain.LoadReport, error) {
	if err := l.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	var reports []domain.LoadReport
	for _, art := range staged {
		var report domain.LoadReport
		switch art.Kind {
		case domain.DatasetAirQuality:
			records, err := l.reader.ReadAirQualityCSV(art.Path)
			if err != nil {
				return reports, err
			}
			report, err = l.store.UpsertAirQuality(ctx, records)
			if err != nil {
				return append(reports, report), err
			}
		case domain.DatasetWeather:
			records, err := l.reader.ReadWeatherCSV(art.Path)
			if err != nil {
				return reports, err
			}
			report, err = l.store.UpsertWeather(ctx, records)
			if err != nil {
				return append(reports, report), err
			}
		default:
			l.logger.Warn("skipping staged artifact of unknown dataset", "dataset", art.Kind)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// SkipLoader stands in when no warehouse is configured. The run still stages
// and analyzes; only the warehouse write is skipped.
type SkipLoader struct {
	logger *slog.Logger
}

// NewSkipLoader creates a loader that skips the warehouse write.
func NewSkipLoader(logger *slog.Logger) *SkipLoader {
	return &SkipLoader{logger: logger}
}

// LoadAll logs the skipped tables and succeeds without writing anything.
func (l *SkipLoader) LoadAll(_ context.Context, staged []domain.StagedArtifact) ([]domain.LoadReport, error) {
	for _, art := range staged {
		l.logger.Warn("no database configured, skipping load",
			"dataset", art.Kind, "rows", art.Rows)
	}
	return nil, nil
}
