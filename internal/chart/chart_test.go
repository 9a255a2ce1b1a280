package chart

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/millrun/internal/domain"
)

func sampleData() domain.ChargeThrowData {
	frames := 3
	return domain.ChargeThrowData{
		Source:     domain.ChargeSourceLIGGGHTS,
		Message:    "ok",
		FrameCount: &frames,
		Trajectories: []domain.ParticleTrajectory{
			{ParticleID: 1, Points: []domain.TrajectoryPoint{{X: 1, Y: -2, Speed: 0.5}, {X: 1.2, Y: -1.8, Speed: 1.5}, {X: 1.5, Y: -1.2, Speed: 2.5}}},
			{ParticleID: 2, Points: []domain.TrajectoryPoint{{X: -1, Y: -2, Speed: 0.2}, {X: -0.8, Y: -2.1, Speed: 0.3}}},
		},
	}
}

func sampleOptions() Options {
	return Options{RunID: "abc123def0", Config: domain.MillConfig{DiameterM: 5, LengthM: 7, RPM: 15}}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleOptions(), sampleData()))

	html := buf.String()
	assert.Contains(t, html, "Charge Throw")
	assert.Contains(t, html, "abc123def0")
	assert.Contains(t, html, "particles=2 points=5 frames=3")
	assert.Contains(t, html, "echarts")
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, sampleOptions(), sampleData()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, bounds.Dx(), bounds.Dy())
	assert.Greater(t, bounds.Dx(), 0)
}

func TestWriteUnavailable(t *testing.T) {
	empty := domain.ChargeThrowData{Source: domain.ChargeSourceUnavailable, Message: "No LIGGGHTS dump found."}

	var buf bytes.Buffer
	assert.ErrorIs(t, WriteHTML(&buf, sampleOptions(), empty), ErrNoTrajectories)
	assert.ErrorIs(t, WritePNG(&buf, sampleOptions(), empty), ErrNoTrajectories)
	assert.Zero(t, buf.Len())
}

func TestExtentCoversShellAndPoints(t *testing.T) {
	data := sampleData()
	assert.InDelta(t, 2.75, extent(sampleOptions().Config, data), 1e-12)

	data.Trajectories[0].Points[0].X = -4
	assert.InDelta(t, 4.4, extent(sampleOptions().Config, data), 1e-12)
}

func TestSpeedColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x44, G: 0x01, B: 0x54, A: 255}, speedColor(0, 10))
	assert.Equal(t, color.RGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 255}, speedColor(10, 10))
	assert.Equal(t, color.RGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 255}, speedColor(50, 10))
	assert.Equal(t, color.RGBA{R: 0x44, G: 0x01, B: 0x54, A: 255}, speedColor(math.NaN(), 0))
}

func TestCircleIsClosed(t *testing.T) {
	pts := circle(2, 36)
	require.Len(t, pts, 37)
	assert.InDelta(t, pts[0].X, pts[36].X, 1e-12)
	assert.InDelta(t, pts[0].Y, pts[36].Y, 1e-12)
	for _, p := range pts {
		assert.InDelta(t, 2.0, math.Hypot(p.X, p.Y), 1e-12)
	}
}

func TestViridisHexMatchesRamp(t *testing.T) {
	hex := viridisHex()
	require.Len(t, hex, len(viridis))
	assert.Equal(t, "#440154", hex[0])
	assert.Equal(t, "#fde725", hex[len(hex)-1])
}
