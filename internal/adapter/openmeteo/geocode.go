package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Geocode resolves a city name to coordinates via the Open-Meteo Geocoding
// API. It shares the client's retry, backoff, and breaker behaviour.
func (c *Client) Geocode(ctx context.Context, name string) (lat, lon float64, err error) {
	q := url.Values{
		"name":  {name},
		"count": {"1"},
	}
	body, err := c.get(ctx, c.cfg.GeocodingBaseURL+"?"+q.Encode())
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", name, err)
	}

	var payload struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: decode response: %w", name, err)
	}
	if len(payload.Results) == 0 {
		return 0, 0, fmt.Errorf("geocode %q: no results", name)
	}
	return payload.Results[0].Latitude, payload.Results[0].Longitude, nil
}
