// Package analysis computes the summary statistics and chart artifacts for a
// completed pipeline run. It works entirely from the cleaned tables; it never
// touches the warehouse.
package analysis

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// Summarize computes the run's headline metrics from the cleaned tables.
// Metrics whose inputs are entirely absent are omitted rather than reported
// as zero.
func Summarize(aq []domain.AirQualityRecord, wx []domain.WeatherRecord) []domain.Metric {
	var metrics []domain.Metric

	metrics = append(metrics, pollutionMetrics(aq)...)
	metrics = append(metrics, riskMetrics(aq)...)
	metrics = append(metrics, weatherMetrics(wx)...)

	return metrics
}

func pollutionMetrics(records []domain.AirQualityRecord) []domain.Metric {
	var metrics []domain.Metric

	pm25ByCity := make(map[string][]float64)
	severityByCity := make(map[string][]float64)
	pm25ByHour := make(map[int][]float64)
	var allPM25 []float64

	for _, r := range records {
		if r.PM25 != nil {
			pm25ByCity[r.City] = append(pm25ByCity[r.City], *r.PM25)
			pm25ByHour[r.Hour] = append(pm25ByHour[r.Hour], *r.PM25)
			allPM25 = append(allPM25, *r.PM25)
		}
		if r.SeverityScore != nil {
			severityByCity[r.City] = append(severityByCity[r.City], *r.SeverityScore)
		}
	}

	if city, avg, ok := highestMeanBy(pm25ByCity); ok {
		metrics = append(metrics, domain.Metric{Name: "city_highest_avg_pm2_5", Value: city, Detail: avg})
	}
	if city, avg, ok := highestMeanBy(severityByCity); ok {
		metrics = append(metrics, domain.Metric{Name: "city_highest_severity_score", Value: city, Detail: avg})
	}
	if hour, avg, ok := worstHour(pm25ByHour); ok {
		metrics = append(metrics, domain.Metric{Name: "worst_hour_by_avg_pm2_5", Value: fmt.Sprintf("%02d:00", hour), Detail: avg})
	}

	if len(allPM25) > 0 {
		mean, _ := stats.Mean(allPM25)
		min, _ := stats.Min(allPM25)
		max, _ := stats.Max(allPM25)
		metrics = append(metrics,
			domain.Metric{Name: "pm2_5_mean", Value: formatDetail(mean), Detail: mean},
			domain.Metric{Name: "pm2_5_min", Value: formatDetail(min), Detail: min},
			domain.Metric{Name: "pm2_5_max", Value: formatDetail(max), Detail: max},
		)
	}

	return metrics
}

func riskMetrics(records []domain.AirQualityRecord) []domain.Metric {
	counts := make(map[string]int)
	total := 0
	for _, r := range records {
		if r.Risk == nil {
			continue
		}
		counts[*r.Risk]++
		total++
	}
	if total == 0 {
		return nil
	}

	// Fixed tier order keeps the report stable across runs.
	var metrics []domain.Metric
	for _, tier := range []string{domain.RiskLow, domain.RiskModerate, domain.RiskHigh} {
		pct := float64(counts[tier]) / float64(total) * 100
		metrics = append(metrics, domain.Metric{
			Name:   "risk_percentage_" + tier,
			Value:  fmt.Sprintf("%.1f%%", pct),
			Detail: pct,
		})
	}
	return metrics
}

func weatherMetrics(records []domain.WeatherRecord) []domain.Metric {
	var metrics []domain.Metric

	tempsByCity := make(map[string][]float64)
	categoryCounts := make(map[string]int)
	var allTemps []float64
	categorized := 0

	for _, r := range records {
		if r.TemperatureC != nil {
			tempsByCity[r.City] = append(tempsByCity[r.City], *r.TemperatureC)
			allTemps = append(allTemps, *r.TemperatureC)
		}
		if r.TempCategory != nil {
			categoryCounts[*r.TempCategory]++
			categorized++
		}
	}

	if len(allTemps) > 0 {
		mean, _ := stats.Mean(allTemps)
		metrics = append(metrics, domain.Metric{Name: "mean_temperature_c", Value: formatDetail(mean), Detail: mean})
	}

	for _, city := range sortedKeys(tempsByCity) {
		mean, _ := stats.Mean(tempsByCity[city])
		metrics = append(metrics, domain.Metric{
			Name:   "mean_temperature_c_" + city,
			Value:  formatDetail(mean),
			Detail: mean,
		})
	}

	if categorized > 0 {
		for _, cat := range []string{
			domain.TempVeryCold, domain.TempCold, domain.TempMild, domain.TempWarm, domain.TempHot,
		} {
			n, ok := categoryCounts[cat]
			if !ok {
				continue
			}
			pct := float64(n) / float64(categorized) * 100
			metrics = append(metrics, domain.Metric{
				Name:   "temp_category_percentage_" + cat,
				Value:  fmt.Sprintf("%.1f%%", pct),
				Detail: pct,
			})
		}
	}

	return metrics
}

// CityRiskDistribution breaks the classified hours down by (city, risk
// tier): how many of the city's rows fall in each tier and what share of the
// city that is. Cities are alphabetical and tiers in severity order; a tier
// a city never reaches is omitted.
func CityRiskDistribution(records []domain.AirQualityRecord) []domain.RiskDistributionRow {
	counts := make(map[string]map[string]int)
	totals := make(map[string]int)
	for _, r := range records {
		if r.Risk == nil {
			continue
		}
		if counts[r.City] == nil {
			counts[r.City] = make(map[string]int)
		}
		counts[r.City][*r.Risk]++
		totals[r.City]++
	}

	cities := make([]string, 0, len(counts))
	for c := range counts {
		cities = append(cities, c)
	}
	sort.Strings(cities)

	var rows []domain.RiskDistributionRow
	for _, city := range cities {
		for _, tier := range []string{domain.RiskLow, domain.RiskModerate, domain.RiskHigh} {
			n, ok := counts[city][tier]
			if !ok {
				continue
			}
			rows = append(rows, domain.RiskDistributionRow{
				City:       city,
				Risk:       tier,
				Count:      n,
				Percentage: float64(n) / float64(totals[city]) * 100,
			})
		}
	}
	return rows
}

// PollutionTrends projects the cleaned table down to the key pollutants per
// (city, timestamp). Rows where all three pollutants are missing are dropped;
// input order is preserved.
func PollutionTrends(records []domain.AirQualityRecord) []domain.PollutionTrendRow {
	var rows []domain.PollutionTrendRow
	for _, r := range records {
		if r.PM25 == nil && r.PM10 == nil && r.Ozone == nil {
			continue
		}
		rows = append(rows, domain.PollutionTrendRow{
			Time:  r.Time,
			City:  r.City,
			PM25:  r.PM25,
			PM10:  r.PM10,
			Ozone: r.Ozone,
		})
	}
	return rows
}

// highestMeanBy returns the key with the greatest mean value. Ties break
// alphabetically so the result is deterministic.
func highestMeanBy(groups map[string][]float64) (string, float64, bool) {
	best := ""
	bestMean := 0.0
	found := false
	for _, key := range sortedKeys(groups) {
		mean, err := stats.Mean(groups[key])
		if err != nil {
			continue
		}
		if !found || mean > bestMean {
			best, bestMean, found = key, mean, true
		}
	}
	return best, bestMean, found
}

func worstHour(groups map[int][]float64) (int, float64, bool) {
	hours := make([]int, 0, len(groups))
	for h := range groups {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	best := 0
	bestMean := 0.0
	found := false
	for _, h := range hours {
		mean, err := stats.Mean(groups[h])
		if err != nil {
			continue
		}
		if !found || mean > bestMean {
			best, bestMean, found = h, mean, true
		}
	}
	return best, bestMean, found
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatDetail(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
