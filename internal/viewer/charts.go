package viewer

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

const hourLabelFormat = "2006-01-02 15:04"

// renderDashboard writes the full dashboard page: a temperature chart and a
// humidity chart, one line per city. Legend toggling, axis tooltips, and the
// zoom slider come from ECharts itself; the server only shapes the data.
func renderDashboard(w io.Writer, d Dataset) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = "weatherlog"

	page.AddCharts(
		metricLine(d, "Temperature (°C)", func(o domain.Observation) float64 { return o.Temperature }),
		metricLine(d, "Humidity (%)", func(o domain.Observation) float64 { return float64(o.Humidity) }),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

// metricLine builds one time-ordered line chart with a series per city.
// Cities are aligned on the union of observed hours; an hour a city has no
// row for renders as a gap rather than an interpolated point.
func metricLine(d Dataset, title string, value func(domain.Observation) float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle(d),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	hours := d.hourAxis()
	labels := make([]string, 0, len(hours))
	for _, h := range hours {
		labels = append(labels, h.Format(hourLabelFormat))
	}
	line.SetXAxis(labels)

	byCity := d.byCity()
	for _, city := range d.Cities {
		byHour := make(map[time.Time]float64, len(byCity[city]))
		for _, obs := range byCity[city] {
			byHour[obs.Timestamp] = value(obs)
		}

		data := make([]opts.LineData, 0, len(hours))
		for _, h := range hours {
			if v, ok := byHour[h]; ok {
				data = append(data, opts.LineData{Value: v})
			} else {
				data = append(data, opts.LineData{Value: nil})
			}
		}
		line.AddSeries(city, data)
	}

	return line
}

// hourAxis returns the sorted union of observed hours across all cities.
func (d Dataset) hourAxis() []time.Time {
	seen := map[time.Time]struct{}{}
	var hours []time.Time
	for _, obs := range d.Observations {
		if _, ok := seen[obs.Timestamp]; ok {
			continue
		}
		seen[obs.Timestamp] = struct{}{}
		hours = append(hours, obs.Timestamp)
	}
	// Observations are already time-ordered, so hours are too.
	return hours
}

func subtitle(d Dataset) string {
	s := "last updated " + d.LastUpdated.UTC().Format(hourLabelFormat) + " UTC"
	if d.Skipped > 0 {
		s += fmt.Sprintf(" · %d malformed row(s) excluded", d.Skipped)
	}
	return s
}
