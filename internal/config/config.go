package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// defaultCities is the built-in monitoring set with coordinates, overridable
// via CITIES.
const defaultCities = "Delhi:28.7041:77.1025,Mumbai:19.0760:72.8777,Bengaluru:12.9716:77.5946,Hyderabad:17.3850:78.4867,Kolkata:22.5726:88.3639"

// Config holds all pipeline settings, populated from environment variables.
// A .env file in the working directory is loaded first when present.
type Config struct {
	Cities []domain.Location

	AirQualityAPIBase string
	WeatherAPIBase    string
	GeocodingAPIBase  string

	ForecastDays int
	MaxRetries   int
	HTTPTimeout  time.Duration
	FetchPause   time.Duration

	DataDir     string
	DatabaseURL string
	DBBatchSize int

	RunInterval     time.Duration // 0 means one-shot
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	GeocodeCacheSize int

	Thresholds domain.Thresholds
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // best effort; absence of .env is not an error

	cities, err := parseCities(envOrDefault("CITIES", defaultCities))
	if err != nil {
		return nil, err
	}

	forecastDays, err := envInt("FORECAST_DAYS", 5)
	if err != nil {
		return nil, err
	}
	maxRetries, err := envInt("MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("DB_BATCH_SIZE", 200)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("GEOCODE_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	httpTimeout, err := envDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fetchPause, err := envDuration("FETCH_PAUSE", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	runInterval, err := envDuration("RUN_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	thresholds, err := loadThresholds()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Cities: cities,

		AirQualityAPIBase: envOrDefault("AIR_QUALITY_API_BASE", "https://air-quality-api.open-meteo.com/v1/air-quality"),
		WeatherAPIBase:    envOrDefault("WEATHER_API_BASE", "https://api.open-meteo.com/v1/forecast"),
		GeocodingAPIBase:  envOrDefault("GEOCODING_API_BASE", "https://geocoding-api.open-meteo.com/v1/search"),

		ForecastDays: forecastDays,
		MaxRetries:   maxRetries,
		HTTPTimeout:  httpTimeout,
		FetchPause:   fetchPause,

		DataDir:     envOrDefault("DATA_DIR", "data"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBBatchSize: batchSize,

		RunInterval:     runInterval,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GeocodeCacheSize: cacheSize,

		Thresholds: thresholds,
	}

	if len(cfg.Cities) == 0 {
		return nil, errors.New("CITIES must list at least one city")
	}
	if cfg.ForecastDays < 1 || cfg.ForecastDays > 16 {
		return nil, errors.New("FORECAST_DAYS must be between 1 and 16")
	}
	if cfg.MaxRetries < 1 {
		return nil, errors.New("MAX_RETRIES must be at least 1")
	}
	if cfg.DBBatchSize < 1 {
		return nil, errors.New("DB_BATCH_SIZE must be at least 1")
	}

	return cfg, nil
}

// parseCities parses a comma-separated list of "name:lat:lon" entries.
// A bare "name" entry is kept with zero coordinates for the geocoding
// fallback to resolve.
func parseCities(s string) ([]domain.Location, error) {
	var locations []domain.Location
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		switch len(parts) {
		case 1:
			locations = append(locations, domain.Location{Name: parts[0]})
		case 3:
			lat, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid latitude in CITIES entry %q", entry)
			}
			lon, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid longitude in CITIES entry %q", entry)
			}
			locations = append(locations, domain.Location{Name: parts[0], Lat: lat, Lon: lon})
		default:
			return nil, fmt.Errorf("invalid CITIES entry %q, want name or name:lat:lon", entry)
		}
	}
	return locations, nil
}

// loadThresholds reads the optional policy-boundary overrides. Each key is a
// comma-separated ascending float list of fixed length.
func loadThresholds() (domain.Thresholds, error) {
	t := domain.DefaultThresholds()

	if err := parseBounds("TEMP_BOUNDS", t.TempBounds[:]); err != nil {
		return t, err
	}
	if err := parseBounds("AQI_BREAKPOINTS", t.AQIBreakpoints[:]); err != nil {
		return t, err
	}
	if err := parseBounds("RISK_THRESHOLDS", t.RiskThresholds[:]); err != nil {
		return t, err
	}
	return t, nil
}

func parseBounds(key string, dst []float64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != len(dst) {
		return fmt.Errorf("%s must have exactly %d values", key, len(dst))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("invalid %s value %q", key, p)
		}
		if i > 0 && v <= dst[i-1] {
			return fmt.Errorf("%s values must be strictly ascending", key)
		}
		dst[i] = v
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
