package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestClassifyAQI(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		pm25     float64
		expected string
	}{
		{"zero", 0, AQIGood},
		{"good boundary inclusive", 50, AQIGood},
		{"just above good", 50.1, AQIModerate},
		{"moderate boundary inclusive", 100, AQIModerate},
		{"unhealthy", 150, AQIUnhealthy},
		{"unhealthy boundary inclusive", 200, AQIUnhealthy},
		{"very unhealthy", 250, AQIVeryUnhealthy},
		{"very unhealthy boundary inclusive", 300, AQIVeryUnhealthy},
		{"hazardous", 301, AQIHazardous},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyAQI(f64(tc.pm25), th)
			require.NotNil(t, got)
			assert.Equal(t, tc.expected, *got)
		})
	}

	t.Run("nil in, nil out", func(t *testing.T) {
		assert.Nil(t, ClassifyAQI(nil, th))
	})
}

func TestClassifyAQI_Monotonic(t *testing.T) {
	th := DefaultThresholds()
	rank := map[string]int{
		AQIGood: 0, AQIModerate: 1, AQIUnhealthy: 2, AQIVeryUnhealthy: 3, AQIHazardous: 4,
	}

	prev := -1
	for pm25 := 0.0; pm25 <= 500; pm25 += 0.5 {
		cat := ClassifyAQI(f64(pm25), th)
		require.NotNil(t, cat)
		r, ok := rank[*cat]
		require.True(t, ok, "unknown category %q", *cat)
		assert.GreaterOrEqual(t, r, prev, "category decreased at pm2.5=%v", pm25)
		prev = r
	}
}

func TestSeverityScore(t *testing.T) {
	t.Run("weighted sum", func(t *testing.T) {
		got := SeverityScore(f64(10), f64(20), f64(5), f64(2), f64(1), f64(30))
		require.NotNil(t, got)
		// 10*5 + 20*3 + 5*4 + 2*4 + 1*2 + 30*3 = 230
		assert.InDelta(t, 230, *got, 1e-9)
	})

	t.Run("any nil input nulls the score", func(t *testing.T) {
		assert.Nil(t, SeverityScore(nil, f64(20), f64(5), f64(2), f64(1), f64(30)))
		assert.Nil(t, SeverityScore(f64(10), f64(20), f64(5), f64(2), f64(1), nil))
	})
}

func TestClassifyRisk(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		severity float64
		expected string
	}{
		{"zero", 0, RiskLow},
		{"low boundary inclusive", 200, RiskLow},
		{"moderate", 200.1, RiskModerate},
		{"moderate boundary inclusive", 400, RiskModerate},
		{"high", 400.1, RiskHigh},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyRisk(f64(tc.severity), th)
			require.NotNil(t, got)
			assert.Equal(t, tc.expected, *got)
		})
	}

	t.Run("nil severity", func(t *testing.T) {
		assert.Nil(t, ClassifyRisk(nil, th))
	})

	t.Run("monotonic in severity", func(t *testing.T) {
		rank := map[string]int{RiskLow: 0, RiskModerate: 1, RiskHigh: 2}
		prev := -1
		for s := 0.0; s <= 1000; s += 5 {
			tier := ClassifyRisk(f64(s), th)
			require.NotNil(t, tier)
			assert.GreaterOrEqual(t, rank[*tier], prev, "tier decreased at severity=%v", s)
			prev = rank[*tier]
		}
	})
}

func TestTemperatureCategory(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		temp     float64
		expected string
	}{
		{"below zero", -5, TempVeryCold},
		{"zero boundary closed", 0, TempCold},
		{"cold", 5, TempCold},
		{"upper bound open", 9.999, TempCold},
		{"ten boundary closed", 10, TempMild},
		{"mild", 15, TempMild},
		{"twenty boundary closed", 20, TempWarm},
		{"warm", 25, TempWarm},
		{"thirty boundary closed", 30, TempHot},
		{"hot", 35, TempHot},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TemperatureCategory(f64(tc.temp), th)
			require.NotNil(t, got)
			assert.Equal(t, tc.expected, *got)
		})
	}

	t.Run("nil temperature", func(t *testing.T) {
		assert.Nil(t, TemperatureCategory(nil, th))
	})
}

func TestFeelsLike(t *testing.T) {
	t.Run("still dry air feels colder", func(t *testing.T) {
		got := FeelsLike(f64(20), f64(0), f64(0))
		require.NotNil(t, got)
		// No humidity term, no wind term: AT = 20 - 4 = 16.
		assert.InDelta(t, 16, *got, 1e-9)
	})

	t.Run("wind lowers apparent temperature", func(t *testing.T) {
		calm := FeelsLike(f64(10), f64(50), f64(0))
		windy := FeelsLike(f64(10), f64(50), f64(36))
		require.NotNil(t, calm)
		require.NotNil(t, windy)
		assert.Less(t, *windy, *calm)
	})

	t.Run("humidity raises apparent temperature", func(t *testing.T) {
		dry := FeelsLike(f64(30), f64(20), f64(10))
		humid := FeelsLike(f64(30), f64(90), f64(10))
		require.NotNil(t, dry)
		require.NotNil(t, humid)
		assert.Greater(t, *humid, *dry)
	})

	t.Run("missing input nulls the result", func(t *testing.T) {
		assert.Nil(t, FeelsLike(nil, f64(50), f64(10)))
		assert.Nil(t, FeelsLike(f64(20), nil, f64(10)))
		assert.Nil(t, FeelsLike(f64(20), f64(50), nil))
	})
}

func TestDeriveAirQuality(t *testing.T) {
	th := DefaultThresholds()

	t.Run("all measurements present", func(t *testing.T) {
		r := AirQualityRecord{
			City: "Delhi",
			PM25: f64(150), PM10: f64(80),
			NitrogenDioxide: f64(40), SulphurDioxide: f64(10),
			CarbonMonoxide: f64(300), Ozone: f64(60),
		}
		got := DeriveAirQuality(r, th)

		require.NotNil(t, got.AQICategory)
		assert.Equal(t, AQIUnhealthy, *got.AQICategory)
		require.NotNil(t, got.SeverityScore)
		// 150*5 + 80*3 + 40*4 + 10*4 + 300*2 + 60*3 = 2170
		assert.InDelta(t, 2170, *got.SeverityScore, 1e-9)
		require.NotNil(t, got.Risk)
		assert.Equal(t, RiskHigh, *got.Risk)
	})

	t.Run("missing pollutant nulls severity and risk but not category", func(t *testing.T) {
		r := AirQualityRecord{
			City: "Delhi",
			PM25: f64(40), PM10: f64(80),
			NitrogenDioxide: f64(40), SulphurDioxide: f64(10),
			CarbonMonoxide: f64(300),
		}
		got := DeriveAirQuality(r, th)

		require.NotNil(t, got.AQICategory)
		assert.Equal(t, AQIGood, *got.AQICategory)
		assert.Nil(t, got.SeverityScore)
		assert.Nil(t, got.Risk)
	})
}

func TestDeriveWeather(t *testing.T) {
	th := DefaultThresholds()

	r := WeatherRecord{City: "Mumbai", TemperatureC: f64(25), RelativeHumidity: f64(70), WindSpeedKMH: f64(12)}
	got := DeriveWeather(r, th)

	require.NotNil(t, got.TempCategory)
	assert.Equal(t, TempWarm, *got.TempCategory)
	require.NotNil(t, got.FeelsLikeC)

	missing := DeriveWeather(WeatherRecord{City: "Mumbai", TemperatureC: f64(25)}, th)
	require.NotNil(t, missing.TempCategory)
	assert.Nil(t, missing.FeelsLikeC)
}
