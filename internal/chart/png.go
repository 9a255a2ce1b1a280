package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/xiaot623/millrun/internal/domain"
)

const (
	pngSize     = 7 * vg.Inch
	shellPoints = 180
)

// WritePNG draws the mill shell and one line per trajectory, coloured by the
// trajectory's mean speed.
func WritePNG(w io.Writer, o Options, data domain.ChargeThrowData) error {
	if !data.Available() {
		return ErrNoTrajectories
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Charge Throw - run %s (%g rpm)", o.RunID, o.Config.RPM)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	if radius := o.Config.DiameterM / 2; radius > 0 {
		shell, err := plotter.NewLine(circle(radius, shellPoints))
		if err != nil {
			return err
		}
		shell.Color = color.Gray{Y: 128}
		shell.Width = vg.Points(1.5)
		shell.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(shell)
		p.Legend.Add("mill shell", shell)
	}

	top := maxSpeed(data)
	for _, t := range data.Trajectories {
		pts := make(plotter.XYs, len(t.Points))
		sum := 0.0
		for i, pt := range t.Points {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
			sum += pt.Speed
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("particle %d: %w", t.ParticleID, err)
		}
		line.Color = speedColor(sum/float64(len(t.Points)), top)
		line.Width = vg.Points(1)
		p.Add(line)
	}

	// Square axes so the shell stays round.
	pad := extent(o.Config, data)
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(pngSize, pngSize, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

func circle(radius float64, n int) plotter.XYs {
	pts := make(plotter.XYs, n+1)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = plotter.XY{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)}
	}
	return pts
}
