// Package postgres loads cleaned records into the warehouse tables. Rows are
// idempotent on (city, ts): re-running a window updates existing rows instead
// of duplicating them.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanaq/airq-etl/internal/domain"
)

const (
	airQualityTable = "air_quality_data"
	weatherTable    = "weather_data"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS air_quality_data (
    city             TEXT             NOT NULL,
    ts               TIMESTAMPTZ      NOT NULL,
    hour             SMALLINT         NOT NULL,
    pm10             DOUBLE PRECISION,
    pm2_5            DOUBLE PRECISION,
    carbon_monoxide  DOUBLE PRECISION,
    nitrogen_dioxide DOUBLE PRECISION,
    sulphur_dioxide  DOUBLE PRECISION,
    ozone            DOUBLE PRECISION,
    uv_index         DOUBLE PRECISION,
    aqi_category     TEXT,
    severity_score   DOUBLE PRECISION,
    risk             TEXT,
    PRIMARY KEY (city, ts)
);

CREATE TABLE IF NOT EXISTS weather_data (
    city              TEXT             NOT NULL,
    ts                TIMESTAMPTZ      NOT NULL,
    hour              SMALLINT         NOT NULL,
    temperature_c     DOUBLE PRECISION,
    relative_humidity DOUBLE PRECISION,
    wind_speed_kmh    DOUBLE PRECISION,
    temp_category     TEXT,
    feels_like_c      DOUBLE PRECISION,
    PRIMARY KEY (city, ts)
);
`

const upsertAirQualitySQL = `
INSERT INTO air_quality_data (
    city, ts, hour, pm10, pm2_5, carbon_monoxide, nitrogen_dioxide,
    sulphur_dioxide, ozone, uv_index, aqi_category, severity_score, risk
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (city, ts) DO UPDATE SET
    hour             = EXCLUDED.hour,
    pm10             = EXCLUDED.pm10,
    pm2_5            = EXCLUDED.pm2_5,
    carbon_monoxide  = EXCLUDED.carbon_monoxide,
    nitrogen_dioxide = EXCLUDED.nitrogen_dioxide,
    sulphur_dioxide  = EXCLUDED.sulphur_dioxide,
    ozone            = EXCLUDED.ozone,
    uv_index         = EXCLUDED.uv_index,
    aqi_category     = EXCLUDED.aqi_category,
    severity_score   = EXCLUDED.severity_score,
    risk             = EXCLUDED.risk`

const upsertWeatherSQL = `
INSERT INTO weather_data (
    city, ts, hour, temperature_c, relative_humidity, wind_speed_kmh,
    temp_category, feels_like_c
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (city, ts) DO UPDATE SET
    hour              = EXCLUDED.hour,
    temperature_c     = EXCLUDED.temperature_c,
    relative_humidity = EXCLUDED.relative_humidity,
    wind_speed_kmh    = EXCLUDED.wind_speed_kmh,
    temp_category     = EXCLUDED.temp_category,
    feels_like_c      = EXCLUDED.feels_like_c`

// Store writes cleaned records through a pgx connection pool.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
	logger    *slog.Logger

	// sendBatch executes one chunk against the store. Swappable so the
	// retry and skip accounting can be tested without a live database.
	sendBatch func(ctx context.Context, chunk chunkRange, queue func(b *pgx.Batch, i int)) error
}

// New connects to the warehouse and verifies the connection with a ping.
func New(ctx context.Context, dsn string, batchSize int, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{pool: pool, batchSize: batchSize, logger: logger}
	s.sendBatch = s.sendChunk
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the warehouse tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertAirQuality loads air-quality records in batches. A batch that fails
// is retried once; if it fails again its rows are skipped and recorded, and
// loading continues with the next batch.
func (s *Store) UpsertAirQuality(ctx context.Context, records []domain.AirQualityRecord) (domain.LoadReport, error) {
	return s.upsert(ctx, domain.DatasetAirQuality, airQualityTable, len(records), func(b *pgx.Batch, i int) {
		r := records[i]
		b.Queue(upsertAirQualitySQL,
			r.City, r.Time, r.Hour,
			r.PM10, r.PM25, r.CarbonMonoxide, r.NitrogenDioxide,
			r.SulphurDioxide, r.Ozone, r.UVIndex,
			r.AQICategory, r.SeverityScore, r.Risk,
		)
	})
}

// UpsertWeather loads weather records with the same batching and retry
// behaviour as UpsertAirQuality.
func (s *Store) UpsertWeather(ctx context.Context, records []domain.WeatherRecord) (domain.LoadReport, error) {
	return s.upsert(ctx, domain.DatasetWeather, weatherTable, len(records), func(b *pgx.Batch, i int) {
		r := records[i]
		b.Queue(upsertWeatherSQL,
			r.City, r.Time, r.Hour,
			r.TemperatureC, r.RelativeHumidity, r.WindSpeedKMH,
			r.TempCategory, r.FeelsLikeC,
		)
	})
}

func (s *Store) upsert(ctx context.Context, kind domain.DatasetKind, table string, total int, queue func(b *pgx.Batch, i int)) (domain.LoadReport, error) {
	report := domain.LoadReport{Kind: kind, Table: table}

	for _, chunk := range chunkRanges(total, s.batchSize) {
		err := s.sendBatch(ctx, chunk, queue)
		if err != nil {
			s.logger.Warn("batch failed, retrying once",
				"table", table, "start", chunk.start, "end", chunk.end, "error", err)
			err = s.sendBatch(ctx, chunk, queue)
		}
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.logger.Error("batch failed after retry, skipping rows",
				"table", table, "start", chunk.start, "end", chunk.end, "error", err)
			report.Skipped += chunk.end - chunk.start
			report.FailedBatches = append(report.FailedBatches, domain.BatchError{
				Start: chunk.start, End: chunk.end, Err: err,
			})
			continue
		}
		report.Loaded += chunk.end - chunk.start
	}

	if total > 0 && report.Loaded == 0 {
		return report, fmt.Errorf("load %s: all %d rows failed", table, total)
	}
	return report, nil
}

func (s *Store) sendChunk(ctx context.Context, chunk chunkRange, queue func(b *pgx.Batch, i int)) error {
	batch := &pgx.Batch{}
	for i := chunk.start; i < chunk.end; i++ {
		queue(batch, i)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := chunk.start; i < chunk.end; i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return results.Close()
}

type chunkRange struct {
	start int
	end   int // exclusive
}

func chunkRanges(total, size int) []chunkRange {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = total
	}
	var chunks []chunkRange
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		chunks = append(chunks, chunkRange{start: start, end: end})
	}
	return chunks
}
