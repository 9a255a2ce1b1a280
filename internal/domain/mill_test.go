package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() MillParams {
	return MillParams{
		DiameterM:         Float(5),
		LengthM:           Float(7),
		RPM:               Float(15),
		MediaFillFraction: Float(0.35),
		ParticleDensity:   Float(3000),
		MediaDensity:      Float(7800),
		SimTimeS:          Float(0.1),
		TimestepS:         Float(1e-4),
	}
}

func violationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	fields := make(map[string]string, len(verr.Violations))
	for _, v := range verr.Violations {
		fields[v.Field] = v.Message
	}
	return fields
}

func TestValidateAcceptsValidParams(t *testing.T) {
	cfg, err := Validate(validParams())
	require.NoError(t, err)
	assert.Equal(t, MillConfig{
		DiameterM:         5,
		LengthM:           7,
		RPM:               15,
		MediaFillFraction: 0.35,
		ParticleDensity:   3000,
		MediaDensity:      7800,
		SimTimeS:          0.1,
		TimestepS:         1e-4,
	}, cfg)
}

func TestValidateAppliesDefaults(t *testing.T) {
	p := validParams()
	p.SimTimeS = nil
	p.TimestepS = nil

	cfg, err := Validate(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultSimTime, cfg.SimTimeS)
	assert.Equal(t, DefaultTimestep, cfg.TimestepS)
}

func TestValidateRejectsHighRPMWithDescriptiveMessage(t *testing.T) {
	p := validParams()
	p.RPM = Float(50.5)

	_, err := Validate(p)
	fields := violationFields(t, err)
	assert.Equal(t, "RPM seems too high for an industrial grinding mill", fields["rpm"])
	assert.Len(t, fields, 1)
}

func TestValidateAcceptsRPMAtLimit(t *testing.T) {
	p := validParams()
	p.RPM = Float(50)

	cfg, err := Validate(p)
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.RPM)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name  string
		field string
		set   func(p *MillParams)
	}{
		{"zero diameter", "diameter_m", func(p *MillParams) { p.DiameterM = Float(0) }},
		{"negative length", "length_m", func(p *MillParams) { p.LengthM = Float(-1) }},
		{"zero rpm", "rpm", func(p *MillParams) { p.RPM = Float(0) }},
		{"fill of one", "media_fill_fraction", func(p *MillParams) { p.MediaFillFraction = Float(1) }},
		{"zero fill", "media_fill_fraction", func(p *MillParams) { p.MediaFillFraction = Float(0) }},
		{"zero particle density", "particle_density", func(p *MillParams) { p.ParticleDensity = Float(0) }},
		{"zero media density", "media_density", func(p *MillParams) { p.MediaDensity = Float(0) }},
		{"long simulation", "sim_time_s", func(p *MillParams) { p.SimTimeS = Float(60.01) }},
		{"large timestep", "timestep_s", func(p *MillParams) { p.TimestepS = Float(0.011) }},
		{"nan diameter", "diameter_m", func(p *MillParams) { p.DiameterM = Float(math.NaN()) }},
		{"infinite length", "length_m", func(p *MillParams) { p.LengthM = Float(math.Inf(1)) }},
		{"missing density", "media_density", func(p *MillParams) { p.MediaDensity = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.set(&p)
			_, err := Validate(p)
			fields := violationFields(t, err)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateUpperBoundsInclusive(t *testing.T) {
	p := validParams()
	p.SimTimeS = Float(60)
	p.TimestepS = Float(1e-2)

	_, err := Validate(p)
	assert.NoError(t, err)
}

func TestValidateReportsEveryViolationInFieldOrder(t *testing.T) {
	_, err := Validate(MillParams{RPM: Float(80)})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	got := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		got[i] = v.Field
	}
	assert.Equal(t, []string{
		"diameter_m", "length_m", "rpm", "media_fill_fraction", "particle_density", "media_density",
	}, got)
	assert.Contains(t, err.Error(), "rpm: RPM seems too high")
}

func TestRunStatusIsTerminal(t *testing.T) {
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusDryRun.IsTerminal())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
	assert.Equal(t, EventTypeRunDryRun, TerminalEventType(RunStatusDryRun))
	assert.Equal(t, EventTypeRunFailed, TerminalEventType(RunStatusFailed))
}

func TestStepsPerRevolutionGuardsNearZeroRPM(t *testing.T) {
	cfg := MillConfig{RPM: 0.00001, TimestepS: 1e-4}
	// 60 s / 0.1 rpm = 600 s per revolution.
	assert.Equal(t, int64(6_000_000), cfg.StepsPerRevolution())
}

func TestStepsPerRevolutionAtLeastOne(t *testing.T) {
	cfg := MillConfig{RPM: 50, TimestepS: 1e-2}
	assert.Equal(t, int64(120), cfg.StepsPerRevolution())

	cfg = MillConfig{RPM: 50, TimestepS: 10}
	assert.Equal(t, int64(1), cfg.StepsPerRevolution())
}

func TestTotalSteps(t *testing.T) {
	cfg := MillConfig{SimTimeS: 0.1, TimestepS: 1e-4}
	assert.Equal(t, int64(1000), cfg.TotalSteps())
}
