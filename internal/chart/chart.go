// Package chart renders charge throw trajectories as an interactive HTML
// scatter and as a static PNG.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/xiaot623/millrun/internal/domain"
)

// ErrNoTrajectories is returned when a run has nothing to plot.
var ErrNoTrajectories = errors.New("no charge throw trajectories to plot")

// viridis runs from slow (dark) to fast (yellow).
var viridis = []color.RGBA{
	{R: 0x44, G: 0x01, B: 0x54, A: 255},
	{R: 0x48, G: 0x27, B: 0x77, A: 255},
	{R: 0x3e, G: 0x49, B: 0x89, A: 255},
	{R: 0x31, G: 0x68, B: 0x8e, A: 255},
	{R: 0x26, G: 0x82, B: 0x8e, A: 255},
	{R: 0x1f, G: 0x9e, B: 0x89, A: 255},
	{R: 0x35, G: 0xb7, B: 0x79, A: 255},
	{R: 0x6e, G: 0xce, B: 0x58, A: 255},
	{R: 0xb5, G: 0xde, B: 0x2b, A: 255},
	{R: 0xfd, G: 0xe7, B: 0x25, A: 255},
}

// Options describes what is being plotted.
type Options struct {
	RunID  string
	Config domain.MillConfig
}

// extent is the half-width of a square plot area that holds the mill shell
// and every sampled point.
func extent(cfg domain.MillConfig, data domain.ChargeThrowData) float64 {
	r := cfg.DiameterM / 2
	for _, t := range data.Trajectories {
		for _, p := range t.Points {
			r = math.Max(r, math.Max(math.Abs(p.X), math.Abs(p.Y)))
		}
	}
	if r == 0 {
		r = 1
	}
	return r * 1.1
}

func maxSpeed(data domain.ChargeThrowData) float64 {
	if data.Summary != nil {
		return data.Summary.MaxSpeed
	}
	m := 0.0
	for _, t := range data.Trajectories {
		for _, p := range t.Points {
			m = math.Max(m, p.Speed)
		}
	}
	return m
}

// speedColor maps speed onto the viridis ramp scaled to top.
func speedColor(speed, top float64) color.Color {
	i := 0
	if top > 0 {
		i = int(speed / top * float64(len(viridis)-1))
	}
	i = min(max(i, 0), len(viridis)-1)
	return viridis[i]
}

// viridisHex is the ramp in the CSS notation echarts expects.
func viridisHex() []string {
	out := make([]string, len(viridis))
	for i, c := range viridis {
		out[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return out
}
