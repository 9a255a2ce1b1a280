package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MaxRPM is the highest rotational speed accepted for this equipment class.
	MaxRPM = 50.0
	// MaxSimTime bounds the simulated duration in seconds.
	MaxSimTime = 60.0
	// MaxTimestep bounds the DEM timestep in seconds.
	MaxTimestep = 1e-2

	DefaultSimTime  = 2.0
	DefaultTimestep = 1e-5
)

// MillParams is the raw, unvalidated request for a mill run.
// Nil fields are treated as missing; SimTimeS and TimestepS fall back to defaults.
type MillParams struct {
	DiameterM         *float64 `json:"diameter_m" yaml:"diameter_m"`
	LengthM           *float64 `json:"length_m" yaml:"length_m"`
	RPM               *float64 `json:"rpm" yaml:"rpm"`
	MediaFillFraction *float64 `json:"media_fill_fraction" yaml:"media_fill_fraction"`
	ParticleDensity   *float64 `json:"particle_density" yaml:"particle_density"`
	MediaDensity      *float64 `json:"media_density" yaml:"media_density"`
	SimTimeS          *float64 `json:"sim_time_s,omitempty" yaml:"sim_time_s,omitempty"`
	TimestepS         *float64 `json:"timestep_s,omitempty" yaml:"timestep_s,omitempty"`
}

// MillConfig holds validated physical parameters for one run. It is never mutated.
type MillConfig struct {
	DiameterM         float64 `json:"diameter_m" yaml:"diameter_m"`
	LengthM           float64 `json:"length_m" yaml:"length_m"`
	RPM               float64 `json:"rpm" yaml:"rpm"`
	MediaFillFraction float64 `json:"media_fill_fraction" yaml:"media_fill_fraction"`
	ParticleDensity   float64 `json:"particle_density" yaml:"particle_density"`
	MediaDensity      float64 `json:"media_density" yaml:"media_density"`
	SimTimeS          float64 `json:"sim_time_s" yaml:"sim_time_s"`
	TimestepS         float64 `json:"timestep_s" yaml:"timestep_s"`
}

// Params converts a config back into request form.
func (c MillConfig) Params() MillParams {
	return MillParams{
		DiameterM:         Float(c.DiameterM),
		LengthM:           Float(c.LengthM),
		RPM:               Float(c.RPM),
		MediaFillFraction: Float(c.MediaFillFraction),
		ParticleDensity:   Float(c.ParticleDensity),
		MediaDensity:      Float(c.MediaDensity),
		SimTimeS:          Float(c.SimTimeS),
		TimestepS:         Float(c.TimestepS),
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// FieldViolation describes one rejected field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request is rejected before any run activity.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "invalid mill config: " + strings.Join(parts, "; ")
}

type bound int

const (
	open bound = iota
	closed
	unbounded
)

type fieldRule struct {
	name     string
	value    *float64
	fallback *float64
	min      float64
	max      float64
	maxBound bound
	// plausible applies a domain rule after the range check passes.
	plausible func(v float64) string
}

// Validate checks p and returns the resulting MillConfig, or a *ValidationError
// listing every violation in field order.
func Validate(p MillParams) (MillConfig, error) {
	rules := []fieldRule{
		{name: "diameter_m", value: p.DiameterM, maxBound: unbounded},
		{name: "length_m", value: p.LengthM, maxBound: unbounded},
		{name: "rpm", value: p.RPM, maxBound: unbounded, plausible: plausibleRPM},
		{name: "media_fill_fraction", value: p.MediaFillFraction, max: 1, maxBound: open},
		{name: "particle_density", value: p.ParticleDensity, maxBound: unbounded},
		{name: "media_density", value: p.MediaDensity, maxBound: unbounded},
		{name: "sim_time_s", value: p.SimTimeS, fallback: Float(DefaultSimTime), max: MaxSimTime, maxBound: closed},
		{name: "timestep_s", value: p.TimestepS, fallback: Float(DefaultTimestep), max: MaxTimestep, maxBound: closed},
	}

	var violations []FieldViolation
	values := make([]float64, len(rules))
	for i, r := range rules {
		v := r.value
		if v == nil {
			v = r.fallback
		}
		if v == nil {
			violations = append(violations, FieldViolation{Field: r.name, Message: "field is required"})
			continue
		}
		msg := r.check(*v)
		if msg == "" && r.plausible != nil {
			msg = r.plausible(*v)
		}
		if msg != "" {
			violations = append(violations, FieldViolation{Field: r.name, Message: msg})
			continue
		}
		values[i] = *v
	}

	if len(violations) > 0 {
		return MillConfig{}, &ValidationError{Violations: violations}
	}

	return MillConfig{
		DiameterM:         values[0],
		LengthM:           values[1],
		RPM:               values[2],
		MediaFillFraction: values[3],
		ParticleDensity:   values[4],
		MediaDensity:      values[5],
		SimTimeS:          values[6],
		TimestepS:         values[7],
	}, nil
}

func (r fieldRule) check(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "must be a finite number"
	}
	if v <= r.min {
		return fmt.Sprintf("must be greater than %g", r.min)
	}
	switch r.maxBound {
	case open:
		if v >= r.max {
			return fmt.Sprintf("must be less than %g", r.max)
		}
	case closed:
		if v > r.max {
			return fmt.Sprintf("must be less than or equal to %g", r.max)
		}
	}
	return ""
}

func plausibleRPM(v float64) string {
	if v > MaxRPM {
		return "RPM seems too high for an industrial grinding mill"
	}
	return ""
}

// minRevolutionRPM guards the revolution length against near-zero speeds.
const minRevolutionRPM = 0.1

// TotalSteps is the number of solver steps needed to cover SimTimeS.
func (c MillConfig) TotalSteps() int64 {
	return int64(math.Floor(c.SimTimeS / c.TimestepS))
}

// StepsPerRevolution is the number of solver steps in one mill revolution, at least 1.
func (c MillConfig) StepsPerRevolution() int64 {
	revolution := 60.0 / math.Max(c.RPM, minRevolutionRPM)
	return max(1, int64(math.Floor(revolution/c.TimestepS)))
}

// CriticalRPM is the speed at which the charge starts to centrifuge.
func (c MillConfig) CriticalRPM() float64 {
	return 42.3 / math.Sqrt(c.DiameterM)
}
