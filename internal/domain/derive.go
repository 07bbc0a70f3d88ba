package domain

import "math"

// Temperature categories, ordered coldest to hottest.
const (
	TempVeryCold = "very_cold"
	TempCold     = "cold"
	TempMild     = "mild"
	TempWarm     = "warm"
	TempHot      = "hot"
)

// AQI categories derived from PM2.5, ordered best to worst.
const (
	AQIGood          = "Good"
	AQIModerate      = "Moderate"
	AQIUnhealthy     = "Unhealthy"
	AQIVeryUnhealthy = "Very Unhealthy"
	AQIHazardous     = "Hazardous"
)

// Risk tiers derived from the severity score, ordered lowest to highest.
const (
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
)

// Severity score weights: a fixed linear combination of pollutant
// concentrations used to rank air-quality risk.
const (
	weightPM25 = 5
	weightPM10 = 3
	weightNO2  = 4
	weightSO2  = 4
	weightCO   = 2
	weightO3   = 3
)

// Thresholds carries the policy boundaries used by feature derivation.
// They are configuration rather than literals so deployments can be checked
// against the published breakpoints without a rebuild.
type Thresholds struct {
	// TempBounds are ascending temperature category boundaries, closed on
	// the lower side and open on the upper: t < TempBounds[0] is very_cold,
	// TempBounds[0] <= t < TempBounds[1] is cold, and so on up to hot.
	TempBounds [4]float64

	// AQIBreakpoints are ascending PM2.5 upper bounds (inclusive) for Good,
	// Moderate, Unhealthy, and Very Unhealthy; anything above the last is
	// Hazardous.
	AQIBreakpoints [4]float64

	// RiskThresholds are severity-score bounds: score > RiskThresholds[1]
	// is High, score > RiskThresholds[0] is Moderate, otherwise Low.
	RiskThresholds [2]float64
}

// DefaultThresholds returns the published policy boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempBounds:     [4]float64{0, 10, 20, 30},
		AQIBreakpoints: [4]float64{50, 100, 200, 300},
		RiskThresholds: [2]float64{200, 400},
	}
}

// ClassifyAQI buckets a PM2.5 concentration into an AQI category.
// Nil in, nil out.
func ClassifyAQI(pm25 *float64, t Thresholds) *string {
	if pm25 == nil {
		return nil
	}
	switch v := *pm25; {
	case v <= t.AQIBreakpoints[0]:
		return strPtr(AQIGood)
	case v <= t.AQIBreakpoints[1]:
		return strPtr(AQIModerate)
	case v <= t.AQIBreakpoints[2]:
		return strPtr(AQIUnhealthy)
	case v <= t.AQIBreakpoints[3]:
		return strPtr(AQIVeryUnhealthy)
	default:
		return strPtr(AQIHazardous)
	}
}

// SeverityScore computes the weighted pollutant combination. Any missing
// input nulls the score: the weights are calibrated for the full pollutant
// set, so a partial sum would rank incomparably low.
func SeverityScore(pm25, pm10, no2, so2, co, o3 *float64) *float64 {
	if pm25 == nil || pm10 == nil || no2 == nil || so2 == nil || co == nil || o3 == nil {
		return nil
	}
	score := *pm25*weightPM25 +
		*pm10*weightPM10 +
		*no2*weightNO2 +
		*so2*weightSO2 +
		*co*weightCO +
		*o3*weightO3
	return floatPtr(score)
}

// ClassifyRisk maps a severity score to a risk tier. Nil in, nil out.
func ClassifyRisk(severity *float64, t Thresholds) *string {
	if severity == nil {
		return nil
	}
	switch v := *severity; {
	case v > t.RiskThresholds[1]:
		return strPtr(RiskHigh)
	case v > t.RiskThresholds[0]:
		return strPtr(RiskModerate)
	default:
		return strPtr(RiskLow)
	}
}

// TemperatureCategory buckets a temperature using closed-lower/open-upper
// bounds. Nil in, nil out.
func TemperatureCategory(tempC *float64, t Thresholds) *string {
	if tempC == nil {
		return nil
	}
	switch v := *tempC; {
	case v < t.TempBounds[0]:
		return strPtr(TempVeryCold)
	case v < t.TempBounds[1]:
		return strPtr(TempCold)
	case v < t.TempBounds[2]:
		return strPtr(TempMild)
	case v < t.TempBounds[3]:
		return strPtr(TempWarm)
	default:
		return strPtr(TempHot)
	}
}

// FeelsLike computes the Steadman apparent temperature from temperature (°C),
// relative humidity (%), and wind speed (km/h):
//
//	AT = T + 0.33*e - 0.70*ws - 4.00
//	e  = rh/100 * 6.105 * exp(17.27*T / (237.7 + T))
//
// where ws is wind speed in m/s. Any missing input nulls the result.
func FeelsLike(tempC, humidity, windKMH *float64) *float64 {
	if tempC == nil || humidity == nil || windKMH == nil {
		return nil
	}
	t := *tempC
	e := *humidity / 100 * 6.105 * math.Exp(17.27*t/(237.7+t))
	ws := *windKMH / 3.6
	return floatPtr(t + 0.33*e - 0.70*ws - 4.00)
}

// DeriveAirQuality fills the derived columns of r from its measurements.
// Pure per-row: no cross-row state.
func DeriveAirQuality(r AirQualityRecord, t Thresholds) AirQualityRecord {
	r.AQICategory = ClassifyAQI(r.PM25, t)
	r.SeverityScore = SeverityScore(r.PM25, r.PM10, r.NitrogenDioxide, r.SulphurDioxide, r.CarbonMonoxide, r.Ozone)
	r.Risk = ClassifyRisk(r.SeverityScore, t)
	return r
}

// DeriveWeather fills the derived columns of r from its measurements.
func DeriveWeather(r WeatherRecord, t Thresholds) WeatherRecord {
	r.TempCategory = TemperatureCategory(r.TemperatureC, t)
	r.FeelsLikeC = FeelsLike(r.TemperatureC, r.RelativeHumidity, r.WindSpeedKMH)
	return r
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
