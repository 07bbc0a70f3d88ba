package openmeteo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanaq/airq-etl/internal/domain"
)

func newTestClient(t *testing.T, srv *httptest.Server, maxRetries int) *Client {
	t.Helper()
	return NewClient(Config{
		AirQualityBaseURL: srv.URL + "/v1/air-quality",
		WeatherBaseURL:    srv.URL + "/v1/forecast",
		GeocodingBaseURL:  srv.URL + "/v1/search",
		MaxRetries:        maxRetries,
		Timeout:           2 * time.Second,
	}, slog.Default())
}

func TestClient_FetchAirQuality(t *testing.T) {
	delhi := domain.Location{Name: "Delhi", Lat: 28.7041, Lon: 77.1025}

	t.Run("sends documented query parameters", func(t *testing.T) {
		var gotQuery map[string][]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			fmt.Fprint(w, `{"hourly":{"time":[],"pm2_5":[]}}`)
		}))
		defer srv.Close()

		body, err := newTestClient(t, srv, 1).FetchAirQuality(context.Background(), delhi, 5)
		require.NoError(t, err)
		assert.JSONEq(t, `{"hourly":{"time":[],"pm2_5":[]}}`, string(body))

		assert.Equal(t, []string{"28.7041"}, gotQuery["latitude"])
		assert.Equal(t, []string{"77.1025"}, gotQuery["longitude"])
		assert.Equal(t, []string{"pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone,uv_index"}, gotQuery["hourly"])
		assert.Equal(t, []string{"5"}, gotQuery["forecast_days"])
		assert.Equal(t, []string{"UTC"}, gotQuery["timezone"])
	})

	t.Run("retries server errors until success", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, `{"hourly":{"time":[]}}`)
		}))
		defer srv.Close()

		body, err := newTestClient(t, srv, 3).FetchAirQuality(context.Background(), delhi, 5)
		require.NoError(t, err)
		assert.NotEmpty(t, body)
		assert.Equal(t, int64(3), calls.Load())
	})

	t.Run("exhausted retries surface the last error", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv, 2).FetchAirQuality(context.Background(), delhi, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(t, srv, 3).FetchAirQuality(ctx, delhi, 5)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_FetchWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "temperature_2m,relative_humidity_2m,wind_speed_10m", r.URL.Query().Get("hourly"))
		fmt.Fprint(w, `{"hourly":{"time":[],"temperature_2m":[]}}`)
	}))
	defer srv.Close()

	mumbai := domain.Location{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777}
	body, err := newTestClient(t, srv, 1).FetchWeather(context.Background(), mumbai, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestClient_Geocode(t *testing.T) {
	t.Run("resolves first result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Jaipur", r.URL.Query().Get("name"))
			assert.Equal(t, "1", r.URL.Query().Get("count"))
			fmt.Fprint(w, `{"results":[{"latitude":26.9124,"longitude":75.7873,"name":"Jaipur"}]}`)
		}))
		defer srv.Close()

		lat, lon, err := newTestClient(t, srv, 1).Geocode(context.Background(), "Jaipur")
		require.NoError(t, err)
		assert.Equal(t, 26.9124, lat)
		assert.Equal(t, 75.7873, lon)
	})

	t.Run("no results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		defer srv.Close()

		_, _, err := newTestClient(t, srv, 1).Geocode(context.Background(), "Atlantis")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no results")
	})
}

// countingGeocoder counts resolutions to verify cache behaviour.
type countingGeocoder struct {
	calls atomic.Int64
	err   error
}

func (g *countingGeocoder) Geocode(_ context.Context, name string) (float64, float64, error) {
	g.calls.Add(1)
	if g.err != nil {
		return 0, 0, g.err
	}
	return 11.11, 22.22, nil
}

func TestCachedGeocoder(t *testing.T) {
	t.Run("second lookup hits the cache", func(t *testing.T) {
		inner := &countingGeocoder{}
		cached := NewCachedGeocoder(inner, 10)

		for i := 0; i < 3; i++ {
			lat, lon, err := cached.Geocode(context.Background(), "Pune")
			require.NoError(t, err)
			assert.Equal(t, 11.11, lat)
			assert.Equal(t, 22.22, lon)
		}
		assert.Equal(t, int64(1), inner.calls.Load())
	})

	t.Run("key is case-insensitive", func(t *testing.T) {
		inner := &countingGeocoder{}
		cached := NewCachedGeocoder(inner, 10)

		_, _, err := cached.Geocode(context.Background(), "Pune")
		require.NoError(t, err)
		_, _, err = cached.Geocode(context.Background(), "  PUNE ")
		require.NoError(t, err)
		assert.Equal(t, int64(1), inner.calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		inner := &countingGeocoder{err: fmt.Errorf("provider down")}
		cached := NewCachedGeocoder(inner, 10)

		_, _, err := cached.Geocode(context.Background(), "Pune")
		require.Error(t, err)
		_, _, err = cached.Geocode(context.Background(), "Pune")
		require.Error(t, err)
		assert.Equal(t, int64(2), inner.calls.Load())
		assert.Zero(t, cached.Size())
	})

	t.Run("evicts least recently used beyond capacity", func(t *testing.T) {
		inner := &countingGeocoder{}
		cached := NewCachedGeocoder(inner, 2)

		_, _, _ = cached.Geocode(context.Background(), "a")
		_, _, _ = cached.Geocode(context.Background(), "b")
		_, _, _ = cached.Geocode(context.Background(), "c") // evicts "a"
		_, _, _ = cached.Geocode(context.Background(), "a")
		assert.Equal(t, int64(4), inner.calls.Load())
		assert.Equal(t, 2, cached.Size())
	})
}
