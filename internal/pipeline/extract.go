package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// ForecastClient fetches hourly forecast documents from the provider.
type ForecastClient interface {
	FetchAirQuality(ctx context.Context, loc domain.Location, days int) ([]byte, error)
	FetchWeather(ctx context.Context, loc domain.Location, days int) ([]byte, error)
}

// Geocoder resolves a city name to coordinates when none are configured.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (lat, lon float64, err error)
}

// RawStore persists raw provider documents.
type RawStore interface {
	SaveRaw(kind domain.DatasetKind, city string, payload []byte) (domain.RawArtifact, error)
}

// FetchExtractor pulls both datasets for every configured city and persists
// each response verbatim. One city failing never stops the others; the run
// only fails when no document at all could be fetched.
type FetchExtractor struct {
	client    ForecastClient
	geocoder  Geocoder
	store     RawStore
	locations []domain.Location
	days      int
	pause     time.Duration
	logger    *slog.Logger
}

// NewFetchExtractor creates the extract stage.
func NewFetchExtractor(client ForecastClient, geocoder Geocoder, store RawStore, locations []domain.Location, days int, pause time.Duration, logger *slog.Logger) *FetchExtractor {
	return &FetchExtractor{
		client:    client,
		geocoder:  geocoder,
		store:     store,
		locations: locations,
		days:      days,
		pause:     pause,
		logger:    logger,
	}
}

// ExtractAll fetches air-quality and weather documents for every location.
func (e *FetchExtractor) ExtractAll(ctx context.Context) (domain.ExtractReport, error) {
	var report domain.ExtractReport

	for i, loc := range e.locations {
		if i > 0 && !sleepWithContext(ctx, e.pause) {
			return report, ctx.Err()
		}

		resolved, err := e.resolve(ctx, loc)
		if err != nil {
			// Without coordinates neither dataset can be fetched.
			report.Failures = append(report.Failures,
				domain.ExtractFailure{City: loc.Name, Kind: domain.DatasetAirQuality, Err: err},
				domain.ExtractFailure{City: loc.Name, Kind: domain.DatasetWeather, Err: err},
			)
			continue
		}

		e.fetchOne(ctx, &report, resolved, domain.DatasetAirQuality, e.client.FetchAirQuality)
		e.fetchOne(ctx, &report, resolved, domain.DatasetWeather, e.client.FetchWeather)

		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	if len(report.Artifacts) == 0 {
		return report, errors.New("no location could be fetched")
	}
	return report, nil
}

// resolve fills in coordinates via the geocoder for locations configured by
// name only.
func (e *FetchExtractor) resolve(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if loc.HasCoords() {
		return loc, nil
	}
	lat, lon, err := e.geocoder.Geocode(ctx, loc.Name)
	if err != nil {
		return loc, fmt.Errorf("resolve coordinates: %w", err)
	}
	e.logger.Debug("geocoded location", "city", loc.Name, "lat", lat, "lon", lon)
	loc.Lat, loc.Lon = lat, lon
	return loc, nil
}

type fetchFunc func(ctx context.Context, loc domain.Location, days int) ([]byte, error)

func (e *FetchExtractor) fetchOne(ctx context.Context, report *domain.ExtractReport, loc domain.Location, kind domain.DatasetKind, fetch fetchFunc) {
	payload, err := fetch(ctx, loc, e.days)
	if err != nil {
		report.Failures = append(report.Failures,
			domain.ExtractFailure{City: loc.Name, Kind: kind, Err: err})
		return
	}

	art, err := e.store.SaveRaw(kind, loc.Name, payload)
	if err != nil {
		report.Failures = append(report.Failures,
			domain.ExtractFailure{City: loc.Name, Kind: kind, Err: err})
		return
	}
	report.Artifacts = append(report.Artifacts, art)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
