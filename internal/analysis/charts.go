package analysis

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/urbanaq/airq-etl/internal/domain"
)

// histogramBucketWidth is the PM2.5 bucket size in micrograms per cubic metre.
const histogramBucketWidth = 25.0

// ChartResult names what was rendered and what failed. A failed chart never
// aborts the run; the remaining charts still render.
type ChartResult struct {
	Rendered []string
	Failures []string
}

// RenderCharts writes the run's PNG charts into dir.
func RenderCharts(dir string, records []domain.AirQualityRecord) ChartResult {
	var result ChartResult

	renderers := []struct {
		name   string
		render func(path string, records []domain.AirQualityRecord) error
	}{
		{"pm25_histogram.png", renderPM25Histogram},
		{"risk_by_city.png", renderRiskByCity},
		{"hourly_pm25_trends.png", renderHourlyTrends},
		{"severity_vs_pm25.png", renderSeverityScatter},
	}

	for _, r := range renderers {
		path := filepath.Join(dir, r.name)
		if err := r.render(path, records); err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", r.name, err))
			continue
		}
		result.Rendered = append(result.Rendered, path)
	}
	return result
}

func renderPM25Histogram(path string, records []domain.AirQualityRecord) error {
	counts := make(map[int]int)
	maxBucket := 0
	total := 0
	for _, r := range records {
		if r.PM25 == nil {
			continue
		}
		b := int(*r.PM25 / histogramBucketWidth)
		counts[b]++
		total++
		if b > maxBucket {
			maxBucket = b
		}
	}
	if total == 0 {
		return fmt.Errorf("no pm2_5 values")
	}

	bars := make([]chart.Value, 0, maxBucket+1)
	for b := 0; b <= maxBucket; b++ {
		lo := float64(b) * histogramBucketWidth
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%.0f-%.0f", lo, lo+histogramBucketWidth),
			Value: float64(counts[b]),
		})
	}

	graph := chart.BarChart{
		Title:    "PM2.5 distribution (µg/m³)",
		Height:   512,
		BarWidth: 40,
		Bars:     bars,
	}
	return renderToFile(path, graph.Render)
}

func renderRiskByCity(path string, records []domain.AirQualityRecord) error {
	highByCity := make(map[string]int)
	totalByCity := make(map[string]int)
	for _, r := range records {
		if r.Risk == nil {
			continue
		}
		totalByCity[r.City]++
		if *r.Risk == domain.RiskHigh {
			highByCity[r.City]++
		}
	}
	if len(totalByCity) == 0 {
		return fmt.Errorf("no risk values")
	}

	cities := make([]string, 0, len(totalByCity))
	for city := range totalByCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	bars := make([]chart.Value, 0, len(cities))
	for _, city := range cities {
		pct := float64(highByCity[city]) / float64(totalByCity[city]) * 100
		bars = append(bars, chart.Value{Label: city, Value: pct})
	}

	graph := chart.BarChart{
		Title:    "High-risk hours by city (%)",
		Height:   512,
		BarWidth: 60,
		Bars:     bars,
	}
	return renderToFile(path, graph.Render)
}

func renderHourlyTrends(path string, records []domain.AirQualityRecord) error {
	type point struct {
		t time.Time
		v float64
	}
	byCity := make(map[string][]point)
	for _, r := range records {
		if r.PM25 == nil {
			continue
		}
		byCity[r.City] = append(byCity[r.City], point{t: r.Time, v: *r.PM25})
	}

	cities := make([]string, 0, len(byCity))
	for city, pts := range byCity {
		// go-chart needs at least two points per series.
		if len(pts) < 2 {
			continue
		}
		cities = append(cities, city)
	}
	if len(cities) == 0 {
		return fmt.Errorf("not enough pm2_5 points for a trend line")
	}
	sort.Strings(cities)

	series := make([]chart.Series, 0, len(cities))
	for _, city := range cities {
		pts := byCity[city]
		sort.Slice(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })

		ts := chart.TimeSeries{Name: city}
		for _, p := range pts {
			ts.XValues = append(ts.XValues, p.t)
			ts.YValues = append(ts.YValues, p.v)
		}
		series = append(series, ts)
	}

	graph := chart.Chart{
		Title:  "Hourly PM2.5 by city",
		Height: 512,
		XAxis:  chart.XAxis{Name: "time"},
		YAxis:  chart.YAxis{Name: "pm2_5 (µg/m³)"},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return renderToFile(path, graph.Render)
}

func renderSeverityScatter(path string, records []domain.AirQualityRecord) error {
	var xs, ys []float64
	for _, r := range records {
		if r.PM25 == nil || r.SeverityScore == nil {
			continue
		}
		xs = append(xs, *r.PM25)
		ys = append(ys, *r.SeverityScore)
	}
	if len(xs) < 2 {
		return fmt.Errorf("not enough points for a scatter plot")
	}

	graph := chart.Chart{
		Title:  "Severity score vs PM2.5",
		Height: 512,
		XAxis:  chart.XAxis{Name: "pm2_5 (µg/m³)"},
		YAxis:  chart.YAxis{Name: "severity score"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return renderToFile(path, graph.Render)
}

func renderToFile(path string, render func(chart.RendererProvider, io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := render(chart.PNG, f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("render chart: %w", err)
	}
	return f.Close()
}
