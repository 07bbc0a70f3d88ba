// Command validate performs data integrity checks over a completed run's
// data directory: every raw document must flatten cleanly, staged row counts
// must match the raw documents, (city, time) keys must be unique, and the
// derived columns must be reproducible from the measurements. It re-runs the
// actual domain derivations with the default policy boundaries, so runs with
// overridden boundaries should be validated with the same overrides set.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urbanaq/airq-etl/internal/adapter/artifact"
	"github.com/urbanaq/airq-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "pipeline data directory (with raw/ and staged/)")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string) int {
	fmt.Println("=== Air Quality Data Integrity Validation ===")
	fmt.Println()

	store, err := artifact.NewStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open artifact store: %v\n", err)
		return 1
	}

	thresholds := domain.DefaultThresholds()

	rawAQ, rawWX, rawPhase := flattenRawDocuments(dataDir, thresholds)

	aqPath, wxPath, err := latestStagedPaths(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: locate staged tables: %v\n", err)
		return 1
	}

	var stagedAQ []domain.AirQualityRecord
	var stagedWX []domain.WeatherRecord
	if aqPath != "" {
		if stagedAQ, err = store.ReadAirQualityCSV(aqPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", aqPath, err)
			return 1
		}
	}
	if wxPath != "" {
		if stagedWX, err = store.ReadWeatherCSV(wxPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", wxPath, err)
			return 1
		}
	}

	phases := []*phase{
		rawPhase,
		validateRowCounts(rawAQ, rawWX, stagedAQ, stagedWX),
		validateKeyUniqueness(stagedAQ, stagedWX),
		validateDerivedColumns(stagedAQ, stagedWX, thresholds),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d raw air-quality, %d raw weather, %d staged air-quality, %d staged weather\n",
		len(rawAQ), len(rawWX), len(stagedAQ), len(stagedWX))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Raw documents ──
// Every raw document must parse and flatten without error.

func flattenRawDocuments(dataDir string, thresholds domain.Thresholds) ([]domain.AirQualityRecord, []domain.WeatherRecord, *phase) {
	p := &phase{name: "Phase 1: Raw documents flatten"}

	entries, err := os.ReadDir(filepath.Join(dataDir, "raw"))
	if err != nil {
		p.errorf("read raw dir: %v", err)
		return nil, nil, p
	}

	var aqRecords []domain.AirQualityRecord
	var wxRecords []domain.WeatherRecord

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		payload, err := os.ReadFile(filepath.Join(dataDir, "raw", name))
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}

		switch {
		case strings.Contains(name, "_air_quality_raw_"):
			city := strings.SplitN(name, "_air_quality_raw_", 2)[0]
			records, err := domain.FlattenAirQuality(city, payload, thresholds)
			if err != nil {
				p.errorf("%s: %v", name, err)
				continue
			}
			aqRecords = append(aqRecords, records...)
		case strings.Contains(name, "_weather_raw_"):
			city := strings.SplitN(name, "_weather_raw_", 2)[0]
			records, err := domain.FlattenWeather(city, payload, thresholds)
			if err != nil {
				p.errorf("%s: %v", name, err)
				continue
			}
			wxRecords = append(wxRecords, records...)
		default:
			p.errorf("%s: unrecognized raw artifact name", name)
		}
	}

	if len(aqRecords) == 0 && len(wxRecords) == 0 {
		p.errorf("no raw documents found under %s", filepath.Join(dataDir, "raw"))
	}
	return aqRecords, wxRecords, p
}

// latestStagedPaths returns the newest staged CSV per dataset, by the
// timestamp embedded in the filename.
func latestStagedPaths(dataDir string) (aqPath, wxPath string, err error) {
	stagedDir := filepath.Join(dataDir, "staged")
	entries, err := os.ReadDir(stagedDir)
	if err != nil {
		return "", "", err
	}

	var aqNames, wxNames []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "air_quality_transformed_"):
			aqNames = append(aqNames, name)
		case strings.HasPrefix(name, "weather_transformed_"):
			wxNames = append(wxNames, name)
		}
	}
	sort.Strings(aqNames)
	sort.Strings(wxNames)

	if len(aqNames) > 0 {
		aqPath = filepath.Join(stagedDir, aqNames[len(aqNames)-1])
	}
	if len(wxNames) > 0 {
		wxPath = filepath.Join(stagedDir, wxNames[len(wxNames)-1])
	}
	return aqPath, wxPath, nil
}

// ── Phase 2: Row counts ──
// The latest staged tables must hold exactly the rows the raw documents
// flatten to.

func validateRowCounts(rawAQ []domain.AirQualityRecord, rawWX []domain.WeatherRecord, stagedAQ []domain.AirQualityRecord, stagedWX []domain.WeatherRecord) *phase {
	p := &phase{name: "Phase 2: Staged row counts"}

	if len(rawAQ) != len(stagedAQ) {
		p.errorf("air quality: raw flattens to %d rows, staged has %d", len(rawAQ), len(stagedAQ))
	}
	if len(rawWX) != len(stagedWX) {
		p.errorf("weather: raw flattens to %d rows, staged has %d", len(rawWX), len(stagedWX))
	}
	return p
}

// ── Phase 3: Key uniqueness ──
// (city, time) is the warehouse primary key; staged tables must not carry
// duplicates.

func validateKeyUniqueness(stagedAQ []domain.AirQualityRecord, stagedWX []domain.WeatherRecord) *phase {
	p := &phase{name: "Phase 3: (city, time) uniqueness"}

	seen := map[string]bool{}
	for i := range stagedAQ {
		key := stagedAQ[i].City + "|" + stagedAQ[i].Time.UTC().String()
		if seen[key] {
			p.errorf("air quality: duplicate key %s", key)
		}
		seen[key] = true
	}

	seen = map[string]bool{}
	for i := range stagedWX {
		key := stagedWX[i].City + "|" + stagedWX[i].Time.UTC().String()
		if seen[key] {
			p.errorf("weather: duplicate key %s", key)
		}
		seen[key] = true
	}
	return p
}

// ── Phase 4: Derived columns ──
// Re-derives every staged row's categorical and numeric features from its
// measurements and compares with the stored values.

func validateDerivedColumns(stagedAQ []domain.AirQualityRecord, stagedWX []domain.WeatherRecord, thresholds domain.Thresholds) *phase {
	p := &phase{name: "Phase 4: Derived column consistency"}

	for i := range stagedAQ {
		stripped := stagedAQ[i]
		stripped.AQICategory = nil
		stripped.SeverityScore = nil
		stripped.Risk = nil
		rederived := domain.DeriveAirQuality(stripped, thresholds)

		if !ptrStrEq(rederived.AQICategory, stagedAQ[i].AQICategory) {
			p.errorf("air quality row %d (%s): aqi_category: expected %s, got %s",
				i, stagedAQ[i].City, ptrStr(rederived.AQICategory), ptrStr(stagedAQ[i].AQICategory))
		}
		if !ptrFloatEq(rederived.SeverityScore, stagedAQ[i].SeverityScore) {
			p.errorf("air quality row %d (%s): severity_score mismatch", i, stagedAQ[i].City)
		}
		if !ptrStrEq(rederived.Risk, stagedAQ[i].Risk) {
			p.errorf("air quality row %d (%s): risk: expected %s, got %s",
				i, stagedAQ[i].City, ptrStr(rederived.Risk), ptrStr(stagedAQ[i].Risk))
		}
	}

	for i := range stagedWX {
		stripped := stagedWX[i]
		stripped.TempCategory = nil
		stripped.FeelsLikeC = nil
		rederived := domain.DeriveWeather(stripped, thresholds)

		if !ptrStrEq(rederived.TempCategory, stagedWX[i].TempCategory) {
			p.errorf("weather row %d (%s): temp_category: expected %s, got %s",
				i, stagedWX[i].City, ptrStr(rederived.TempCategory), ptrStr(stagedWX[i].TempCategory))
		}
		if !ptrFloatEqApprox(rederived.FeelsLikeC, stagedWX[i].FeelsLikeC) {
			p.errorf("weather row %d (%s): feels_like_c mismatch", i, stagedWX[i].City)
		}
	}
	return p
}

// ── Helpers ──

func ptrStrEq(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// ptrFloatEqApprox tolerates the rounding the CSV round trip introduces.
func ptrFloatEqApprox(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	diff := *a - *b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-6
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
