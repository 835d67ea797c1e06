package render

import (
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	log "github.com/sirupsen/logrus"

	"smartbin-dashboard/internal/level"
	"smartbin-dashboard/internal/model"
)

// AssetsHost serves the echarts javascript bundle.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const trendColor = "#3b82f6"

// Charts keeps the gauge and trend slots in step with the dashboard state.
type Charts struct {
	Gauge *Slot
	Trend *Slot
	loc   *time.Location
}

// NewCharts creates empty slots. Bucket labels are shown in loc.
func NewCharts(loc *time.Location) *Charts {
	if loc == nil {
		loc = time.UTC
	}
	return &Charts{Gauge: NewSlot("gauge"), Trend: NewSlot("trend"), loc: loc}
}

// Apply redraws the chart belonging to the updated slice.
func (c *Charts) Apply(u model.Update) {
	var err error
	switch u.Kind {
	case model.UpdateStatus:
		status := u.Snapshot.Status
		err = c.Gauge.Replace(func() Drawable { return GaugeChart(status) })
	case model.UpdateHistory:
		view := u.Snapshot.History
		err = c.Trend.Replace(func() Drawable {
			if view.Empty {
				return nil
			}
			return TrendChart(view.Buckets, c.loc)
		})
	}
	if err != nil {
		log.WithError(err).Error("Failed to redraw chart")
	}
}

// Close releases both charts.
func (c *Charts) Close() {
	c.Gauge.Close()
	c.Trend.Close()
}

// GaugeChart draws the fill level colored by its class.
func GaugeChart(s model.CurrentStatus) *charts.Gauge {
	gauge := charts.NewGauge()
	gauge.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Nivel de llenado", Width: "100%", Height: "320px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Nivel de llenado"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	gauge.AddSeries("fill", []opts.GaugeData{{Name: "Lleno (%)", Value: level.Round2(s.FillPercent)}},
		charts.WithItemStyleOpts(opts.ItemStyle{Color: level.Classify(s.FillPercent).Hex()}),
	)
	return gauge
}

// TrendChart draws the bucket averages, labelled with the bucket end time.
func TrendChart(buckets []model.Bucket, loc *time.Location) *charts.Line {
	x := make([]string, 0, len(buckets))
	data := make([]opts.LineData, 0, len(buckets))
	for _, b := range buckets {
		x = append(x, time.Unix(b.EndSeconds, 0).In(loc).Format("15:04"))
		data = append(data, opts.LineData{Value: level.Round2(b.AverageLevel)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tendencia", Width: "100%", Height: "320px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Tendencia de llenado", Subtitle: "Promedio por minuto"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100, Name: "%"}),
	)
	line.SetXAxis(x).
		AddSeries("level", data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: trendColor}),
		)
	return line
}
