package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/xiaot623/millrun/internal/domain"
)

// WriteHTML renders every trajectory point as a scatter coloured by speed.
func WriteHTML(w io.Writer, o Options, data domain.ChargeThrowData) error {
	if !data.Available() {
		return ErrNoTrajectories
	}

	points := make([]opts.ScatterData, 0, len(data.Trajectories)*4)
	for _, t := range data.Trajectories {
		for _, p := range t.Points {
			points = append(points, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Speed}})
		}
	}

	pad := extent(o.Config, data)
	top := maxSpeed(data)
	if top == 0 {
		top = 1
	}

	frames := 0
	if data.FrameCount != nil {
		frames = *data.FrameCount
	}

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Charge Throw " + o.RunID, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Charge Throw",
			Subtitle: fmt.Sprintf("run=%s particles=%d points=%d frames=%d rpm=%g", o.RunID, len(data.Trajectories), len(points), frames, o.Config.RPM),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(top),
			Dimension:  "2",
			Text:       []string{"m/s"},
			InRange:    &opts.VisualMapInRange{Color: viridisHex()},
		}),
	)

	scatter.AddSeries("charge", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
