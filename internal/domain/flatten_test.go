package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenAirQuality(t *testing.T) {
	th := DefaultThresholds()

	t.Run("one row per hour with city attached", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00","2026-08-20T01:00","2026-08-20T02:00"],
			"pm10":[40,50,60],
			"pm2_5":[10,60,150],
			"carbon_monoxide":[200,210,220],
			"nitrogen_dioxide":[20,25,30],
			"sulphur_dioxide":[5,6,7],
			"ozone":[30,35,40],
			"uv_index":[0,0.5,1]
		}}`)

		records, err := FlattenAirQuality("Delhi", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 3)

		for i, r := range records {
			assert.Equal(t, "Delhi", r.City)
			assert.Equal(t, time.Date(2026, 8, 20, i, 0, 0, 0, time.UTC), r.Time)
			assert.Equal(t, i, r.Hour)
		}
		require.NotNil(t, records[0].AQICategory)
		assert.Equal(t, AQIGood, *records[0].AQICategory)
		require.NotNil(t, records[1].AQICategory)
		assert.Equal(t, AQIModerate, *records[1].AQICategory)
		require.NotNil(t, records[2].AQICategory)
		assert.Equal(t, AQIUnhealthy, *records[2].AQICategory)
	})

	t.Run("null measurement propagates without failing the row", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00","2026-08-20T01:00"],
			"pm10":[40,41],
			"pm2_5":[null,60],
			"carbon_monoxide":[200,210],
			"nitrogen_dioxide":[20,25],
			"sulphur_dioxide":[5,6],
			"ozone":[30,35],
			"uv_index":[0,0.5]
		}}`)

		records, err := FlattenAirQuality("Mumbai", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Nil(t, records[0].PM25)
		assert.Nil(t, records[0].AQICategory)
		assert.Nil(t, records[0].SeverityScore)
		assert.Nil(t, records[0].Risk)

		require.NotNil(t, records[1].PM25)
		assert.NotNil(t, records[1].AQICategory)
		assert.NotNil(t, records[1].SeverityScore)
	})

	t.Run("short arrays padded with nulls", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00","2026-08-20T01:00"],
			"pm2_5":[12],
			"pm10":[30,31]
		}}`)

		records, err := FlattenAirQuality("Kolkata", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.NotNil(t, records[0].PM25)
		assert.Nil(t, records[1].PM25)
		assert.NotNil(t, records[1].PM10)
	})

	t.Run("all-null rows dropped", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00","2026-08-20T01:00"],
			"pm2_5":[12,null],
			"pm10":[30,null]
		}}`)

		records, err := FlattenAirQuality("Hyderabad", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 0, records[0].Hour)
	})

	t.Run("duplicate timestamps collapse to first", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00","2026-08-20T00:00"],
			"pm2_5":[12,99]
		}}`)

		records, err := FlattenAirQuality("Bengaluru", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.NotNil(t, records[0].PM25)
		assert.Equal(t, 12.0, *records[0].PM25)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := FlattenAirQuality("Delhi", []byte("{invalid"), th)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Delhi")
	})

	t.Run("missing hourly block", func(t *testing.T) {
		_, err := FlattenAirQuality("Delhi", []byte(`{"latitude":28.7}`), th)
		require.Error(t, err)
	})

	t.Run("missing time array", func(t *testing.T) {
		_, err := FlattenAirQuality("Delhi", []byte(`{"hourly":{"pm2_5":[1,2]}}`), th)
		require.Error(t, err)
	})
}

func TestFlattenWeather(t *testing.T) {
	th := DefaultThresholds()

	t.Run("categories follow documented boundaries", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00","2026-08-20T06:00","2026-08-20T12:00","2026-08-20T18:00"],
			"temperature_2m":[5,15,25,35],
			"relative_humidity_2m":[80,60,40,30],
			"wind_speed_10m":[4,8,12,6]
		}}`)

		records, err := FlattenWeather("Delhi", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 4)

		expected := []string{TempCold, TempMild, TempWarm, TempHot}
		for i, r := range records {
			require.NotNil(t, r.TempCategory, "row %d", i)
			assert.Equal(t, expected[i], *r.TempCategory)
			assert.NotNil(t, r.FeelsLikeC)
		}
	})

	t.Run("RFC3339 timestamps accepted", func(t *testing.T) {
		payload := []byte(`{"hourly":{
			"time":["2026-08-20T00:00:00Z"],
			"temperature_2m":[21]
		}}`)

		records, err := FlattenWeather("Delhi", payload, th)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), records[0].Time)
	})
}
