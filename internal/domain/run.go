package domain

import (
	"encoding/json"
	"time"
)

// TrajectoryPoint is one sampled particle position in the mill cross-section.
type TrajectoryPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
}

// ParticleTrajectory is the ordered path of one particle over the sampled window.
type ParticleTrajectory struct {
	ParticleID int64             `json:"particle_id"`
	Points     []TrajectoryPoint `json:"points"`
}

// ThrowSummary aggregates planar speeds across all trajectory points.
type ThrowSummary struct {
	ParticleCount int     `json:"particle_count"`
	PointCount    int     `json:"point_count"`
	MeanSpeed     float64 `json:"mean_speed"`
	MaxSpeed      float64 `json:"max_speed"`
	P90Speed      float64 `json:"p90_speed"`
}

// ChargeThrowData is the best-effort extraction result for a run.
// An unavailable source is a degraded but valid result, not an error.
type ChargeThrowData struct {
	Source        ChargeSource         `json:"source"`
	Message       string               `json:"message"`
	FrameCount    *int                 `json:"frame_count,omitempty"`
	SkippedFrames int                  `json:"skipped_frames,omitempty"`
	Trajectories  []ParticleTrajectory `json:"trajectories,omitempty"`
	Summary       *ThrowSummary        `json:"summary,omitempty"`
}

// Available reports whether the data carries plottable trajectories.
func (d ChargeThrowData) Available() bool {
	return d.Source == ChargeSourceLIGGGHTS && len(d.Trajectories) > 0
}

// RunArtifacts is the result of one solver invocation.
type RunArtifacts struct {
	RunID       string          `json:"run_id"`
	Status      RunStatus       `json:"status"`
	Message     string          `json:"message"`
	OutputDir   string          `json:"output_dir"`
	InputFile   string          `json:"input_file"`
	LogFile     string          `json:"log_file"`
	Command     []string        `json:"command"`
	ChargeThrow ChargeThrowData `json:"charge_throw"`
}

// RunRecord is the indexed view of a run.
type RunRecord struct {
	RunArtifacts
	Config      MillConfig       `json:"config"`
	Advisories  []FieldViolation `json:"advisories,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Event represents a trace event for a run.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RunResult is the response to a run request.
type RunResult struct {
	RunArtifacts
	Advisories []FieldViolation `json:"advisories,omitempty"`
}
