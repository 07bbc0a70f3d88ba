package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// csvTimeLayout is the timestamp format used in staged and processed CSVs.
const csvTimeLayout = "2006-01-02 15:04:05"

// Fixed column sets of the cleaned tables. Null is an empty cell.
var (
	airQualityColumns = []string{
		"city", "time", "hour",
		"pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide",
		"sulphur_dioxide", "ozone", "uv_index",
		"aqi_category", "severity_score", "risk",
	}
	weatherColumns = []string{
		"city", "time", "hour",
		"temperature_c", "relative_humidity", "wind_speed_kmh",
		"temp_category", "feels_like_c",
	}
	summaryColumns          = []string{"metric", "value", "detail"}
	riskDistributionColumns = []string{"city", "risk", "count", "percent"}
	pollutionTrendColumns   = []string{"city", "time", "pm2_5", "pm10", "ozone"}
)

// WriteAirQualityCSV writes the cleaned air-quality table for this run.
func (s *Store) WriteAirQualityCSV(records []domain.AirQualityRecord) (domain.StagedArtifact, error) {
	name := fmt.Sprintf("air_quality_transformed_%s.csv", clock.Now().UTC().Format(stagedStampLayout))
	path := filepath.Join(s.stagedDir, name)
	if err := writeCSV(path, airQualityColumns, airQualityRows(records)); err != nil {
		return domain.StagedArtifact{}, err
	}
	return domain.StagedArtifact{Kind: domain.DatasetAirQuality, Path: path, Rows: len(records)}, nil
}

// WriteWeatherCSV writes the cleaned weather table for this run.
func (s *Store) WriteWeatherCSV(records []domain.WeatherRecord) (domain.StagedArtifact, error) {
	name := fmt.Sprintf("weather_transformed_%s.csv", clock.Now().UTC().Format(stagedStampLayout))
	path := filepath.Join(s.stagedDir, name)
	if err := writeCSV(path, weatherColumns, weatherRows(records)); err != nil {
		return domain.StagedArtifact{}, err
	}
	return domain.StagedArtifact{Kind: domain.DatasetWeather, Path: path, Rows: len(records)}, nil
}

// WriteProcessedAirQualityCSV writes the analyzer's convenience copy of the
// full cleaned table.
func (s *Store) WriteProcessedAirQualityCSV(records []domain.AirQualityRecord) (string, error) {
	path := filepath.Join(s.processedDir, "air_quality_processed.csv")
	return path, writeCSV(path, airQualityColumns, airQualityRows(records))
}

// WriteProcessedWeatherCSV writes the analyzer's convenience copy of the
// full cleaned weather table.
func (s *Store) WriteProcessedWeatherCSV(records []domain.WeatherRecord) (string, error) {
	path := filepath.Join(s.processedDir, "weather_processed.csv")
	return path, writeCSV(path, weatherColumns, weatherRows(records))
}

// WriteCityRiskDistributionCSV writes the per-city risk-tier breakdown.
func (s *Store) WriteCityRiskDistributionCSV(rows []domain.RiskDistributionRow) (string, error) {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.City,
			r.Risk,
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
		}
	}
	path := filepath.Join(s.processedDir, "city_risk_distribution.csv")
	return path, writeCSV(path, riskDistributionColumns, out)
}

// WritePollutionTrendsCSV writes the long-format key-pollutant trend table.
func (s *Store) WritePollutionTrendsCSV(rows []domain.PollutionTrendRow) (string, error) {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.City,
			r.Time.UTC().Format(csvTimeLayout),
			formatFloat(r.PM25),
			formatFloat(r.PM10),
			formatFloat(r.Ozone),
		}
	}
	path := filepath.Join(s.processedDir, "pollution_trends.csv")
	return path, writeCSV(path, pollutionTrendColumns, out)
}

// WriteSummaryCSV writes the key/value metric table.
func (s *Store) WriteSummaryCSV(metrics []domain.Metric) (string, error) {
	rows := make([][]string, len(metrics))
	for i, m := range metrics {
		rows[i] = []string{m.Name, m.Value, strconv.FormatFloat(m.Detail, 'f', -1, 64)}
	}
	path := filepath.Join(s.processedDir, "summary_metrics.csv")
	return path, writeCSV(path, summaryColumns, rows)
}

// WriteSummaryJSON writes the machine-readable summary report.
func (s *Store) WriteSummaryJSON(report domain.SummaryReport) (string, error) {
	path := filepath.Join(s.processedDir, "summary.json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary report: %w", err)
	}
	return path, nil
}

// LatestSummary returns the current summary report bytes, if any.
func (s *Store) LatestSummary() ([]byte, error) {
	return os.ReadFile(filepath.Join(s.processedDir, "summary.json"))
}

// ReadAirQualityCSV loads a staged air-quality table.
func (s *Store) ReadAirQualityCSV(path string) ([]domain.AirQualityRecord, error) {
	rows, err := readCSV(path, airQualityColumns)
	if err != nil {
		return nil, err
	}
	records := make([]domain.AirQualityRecord, 0, len(rows))
	for i, row := range rows {
		r, err := parseAirQualityRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// ReadWeatherCSV loads a staged weather table.
func (s *Store) ReadWeatherCSV(path string) ([]domain.WeatherRecord, error) {
	rows, err := readCSV(path, weatherColumns)
	if err != nil {
		return nil, err
	}
	records := make([]domain.WeatherRecord, 0, len(rows))
	for i, row := range rows {
		r, err := parseWeatherRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func airQualityRows(records []domain.AirQualityRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.City,
			r.Time.UTC().Format(csvTimeLayout),
			strconv.Itoa(r.Hour),
			formatFloat(r.PM10),
			formatFloat(r.PM25),
			formatFloat(r.CarbonMonoxide),
			formatFloat(r.NitrogenDioxide),
			formatFloat(r.SulphurDioxide),
			formatFloat(r.Ozone),
			formatFloat(r.UVIndex),
			formatString(r.AQICategory),
			formatFloat(r.SeverityScore),
			formatString(r.Risk),
		}
	}
	return rows
}

func weatherRows(records []domain.WeatherRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.City,
			r.Time.UTC().Format(csvTimeLayout),
			strconv.Itoa(r.Hour),
			formatFloat(r.TemperatureC),
			formatFloat(r.RelativeHumidity),
			formatFloat(r.WindSpeedKMH),
			formatString(r.TempCategory),
			formatFloat(r.FeelsLikeC),
		}
	}
	return rows
}

func parseAirQualityRow(row []string) (domain.AirQualityRecord, error) {
	ts, err := time.ParseInLocation(csvTimeLayout, row[1], time.UTC)
	if err != nil {
		return domain.AirQualityRecord{}, fmt.Errorf("parse time %q: %w", row[1], err)
	}
	hour, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.AirQualityRecord{}, fmt.Errorf("parse hour %q: %w", row[2], err)
	}
	r := domain.AirQualityRecord{City: row[0], Time: ts, Hour: hour}
	if r.PM10, err = parseFloat(row[3]); err != nil {
		return r, err
	}
	if r.PM25, err = parseFloat(row[4]); err != nil {
		return r, err
	}
	if r.CarbonMonoxide, err = parseFloat(row[5]); err != nil {
		return r, err
	}
	if r.NitrogenDioxide, err = parseFloat(row[6]); err != nil {
		return r, err
	}
	if r.SulphurDioxide, err = parseFloat(row[7]); err != nil {
		return r, err
	}
	if r.Ozone, err = parseFloat(row[8]); err != nil {
		return r, err
	}
	if r.UVIndex, err = parseFloat(row[9]); err != nil {
		return r, err
	}
	r.AQICategory = parseString(row[10])
	if r.SeverityScore, err = parseFloat(row[11]); err != nil {
		return r, err
	}
	r.Risk = parseString(row[12])
	return r, nil
}

func parseWeatherRow(row []string) (domain.WeatherRecord, error) {
	ts, err := time.ParseInLocation(csvTimeLayout, row[1], time.UTC)
	if err != nil {
		return domain.WeatherRecord{}, fmt.Errorf("parse time %q: %w", row[1], err)
	}
	hour, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.WeatherRecord{}, fmt.Errorf("parse hour %q: %w", row[2], err)
	}
	r := domain.WeatherRecord{City: row[0], Time: ts, Hour: hour}
	if r.TemperatureC, err = parseFloat(row[3]); err != nil {
		return r, err
	}
	if r.RelativeHumidity, err = parseFloat(row[4]); err != nil {
		return r, err
	}
	if r.WindSpeedKMH, err = parseFloat(row[5]); err != nil {
		return r, err
	}
	r.TempCategory = parseString(row[6])
	if r.FeelsLikeC, err = parseFloat(row[7]); err != nil {
		return r, err
	}
	return r, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s row: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(header)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: missing header", path)
	}
	return rows[1:], nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse float %q: %w", s, err)
	}
	return &v, nil
}

func parseString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
