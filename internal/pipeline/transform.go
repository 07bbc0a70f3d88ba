package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// ArtifactReader loads persisted raw documents.
type ArtifactReader interface {
	ReadRaw(a domain.RawArtifact) ([]byte, error)
}

// StagedWriter writes the cleaned tables.
type StagedWriter interface {
	WriteAirQualityCSV(records []domain.AirQualityRecord) (domain.StagedArtifact, error)
	WriteWeatherCSV(records []domain.WeatherRecord) (domain.StagedArtifact, error)
}

// ArtifactStore combines reading raw artifacts and writing staged ones.
type ArtifactStore interface {
	ArtifactReader
	StagedWriter
}

// CSVTransformer flattens every raw document into one row per (city, hour),
// derives the categorical and numeric features, and writes one staged CSV
// per dataset. A document that fails to parse is skipped with a warning; the
// stage only fails when nothing at all could be transformed.
type CSVTransformer struct {
	store      ArtifactStore
	thresholds domain.Thresholds
	logger     *slog.Logger
}

// NewCSVTransformer creates the transform stage.
func NewCSVTransformer(store ArtifactStore, thresholds domain.Thresholds, logger *slog.Logger) *CSVTransformer {
	return &CSVTransformer{store: store, thresholds: thresholds, logger: logger}
}

// TransformAll turns the run's raw artifacts into staged CSV tables.
func (t *CSVTransformer) TransformAll(ctx context.Context, report domain.ExtractReport) ([]domain.StagedArtifact, error) {
	var aqRecords []domain.AirQualityRecord
	var wxRecords []domain.WeatherRecord

	for _, art := range report.Artifacts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		payload, err := t.store.ReadRaw(art)
		if err != nil {
			t.logger.Warn("skipping unreadable raw artifact",
				"city", art.City, "dataset", art.Kind, "error", err)
			continue
		}

		switch art.Kind {
		case domain.DatasetAirQuality:
			records, err := domain.FlattenAirQuality(art.City, payload, t.thresholds)
			if err != nil {
				t.logger.Warn("skipping malformed air-quality document",
					"city", art.City, "error", err)
				continue
			}
			aqRecords = append(aqRecords, records...)
		case domain.DatasetWeather:
			records, err := domain.FlattenWeather(art.City, payload, t.thresholds)
			if err != nil {
				t.logger.Warn("skipping malformed weather document",
					"city", art.City, "error", err)
				continue
			}
			wxRecords = append(wxRecords, records...)
		default:
			t.logger.Warn("skipping artifact of unknown dataset",
				"city", art.City, "dataset", art.Kind)
		}
	}

	if len(aqRecords) == 0 && len(wxRecords) == 0 {
		return nil, errors.New("no rows produced from raw artifacts")
	}

	var staged []domain.StagedArtifact
	if len(aqRecords) > 0 {
		art, err := t.store.WriteAirQualityCSV(aqRecords)
		if err != nil {
			return nil, err
		}
		staged = append(staged, art)
	}
	if len(wxRecords) > 0 {
		art, err := t.store.WriteWeatherCSV(wxRecords)
		if err != nil {
			return nil, err
		}
		staged = append(staged, art)
	}
	return staged, nil
}
