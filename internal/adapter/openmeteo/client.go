// Package openmeteo talks to the Open-Meteo public APIs: hourly air-quality
// and weather forecasts plus the geocoding search endpoint.
package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/urbanaq/airq-etl/internal/domain"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errClientError = errors.New("client error")
	errCircuitOpen = errors.New("circuit breaker open")
)

// Config holds the provider endpoints and resilience settings.
type Config struct {
	AirQualityBaseURL string
	WeatherBaseURL    string
	GeocodingBaseURL  string

	// MaxRetries is the total attempt bound per call, including the first.
	MaxRetries int
	// Timeout applies per HTTP call.
	Timeout time.Duration
}

// Client fetches raw forecast documents with bounded retry, exponential
// backoff, and a circuit breaker shared across endpoints so a dead provider
// fails fast instead of burning the full retry budget per city.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// FetchAirQuality retrieves the raw hourly air-quality document for one
// location. The response body is returned verbatim so it can be persisted
// before any transformation.
func (c *Client) FetchAirQuality(ctx context.Context, loc domain.Location, days int) ([]byte, error) {
	u := forecastURL(c.cfg.AirQualityBaseURL, loc, domain.AirQualityVariables, days)
	return c.get(ctx, u)
}

// FetchWeather retrieves the raw hourly weather document for one location.
func (c *Client) FetchWeather(ctx context.Context, loc domain.Location, days int) ([]byte, error) {
	u := forecastURL(c.cfg.WeatherBaseURL, loc, domain.WeatherVariables, days)
	return c.get(ctx, u)
}

func forecastURL(base string, loc domain.Location, variables []string, days int) string {
	q := url.Values{
		"latitude":      {strconv.FormatFloat(loc.Lat, 'f', 4, 64)},
		"longitude":     {strconv.FormatFloat(loc.Lon, 'f', 4, 64)},
		"hourly":        {strings.Join(variables, ",")},
		"forecast_days": {strconv.Itoa(days)},
		"timezone":      {"UTC"},
	}
	return base + "?" + q.Encode()
}

// get executes the request with up to MaxRetries attempts and exponential
// backoff between them: 500ms initial, doubled per attempt, capped at 5s.
// Any network error or non-2xx status is retried; a tripped breaker is not.
func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := c.doOnce(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		c.logger.Warn("provider request failed",
			"attempt", attempt,
			"max_retries", c.cfg.MaxRetries,
			"error", err,
		)

		if attempt == c.cfg.MaxRetries {
			break
		}
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w: status %d: %s", errClientError, resp.StatusCode, body)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
