package dump

import (
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/xiaot623/millrun/internal/domain"
)

// MaxParticles bounds how many distinct particles are tracked per extraction.
const MaxParticles = 180

const (
	msgNoDump        = "No LIGGGHTS dump found. Check solver output/log file."
	msgUnreadable    = "LIGGGHTS dump could not be read: "
	msgNoFrames      = "LIGGGHTS dump did not contain parsable frames."
	msgNoTrajectory  = "Not enough sampled points in dump to build charge trajectories."
	msgChargeThrowOK = "Charge throw derived from LIGGGHTS dump over approximately one revolution."
)

// Extract reads the dump at path and builds charge throw trajectories over
// roughly the final mill revolution. It never fails; problems are reported as
// an unavailable result.
func Extract(cfg domain.MillConfig, path string) domain.ChargeThrowData {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Unavailable(msgNoDump)
		}
		return Unavailable(msgUnreadable + err.Error())
	}
	defer f.Close()
	return ExtractFrom(cfg, f)
}

// ExtractFrom is Extract over an open reader.
func ExtractFrom(cfg domain.MillConfig, r io.Reader) domain.ChargeThrowData {
	var frames []Frame
	skipped := 0
	p := NewParser(r)
	for {
		frame, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var ferr *FrameError
		if errors.As(err, &ferr) {
			skipped++
			continue
		}
		if err != nil {
			return Unavailable(msgUnreadable + err.Error())
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		data := Unavailable(msgNoFrames)
		data.SkippedFrames = skipped
		return data
	}

	selected := SelectFinalRevolution(frames, cfg.StepsPerRevolution())
	frameCount := len(selected)
	trajectories := BuildTrajectories(selected, MaxParticles)

	if len(trajectories) == 0 {
		return domain.ChargeThrowData{
			Source:        domain.ChargeSourceUnavailable,
			Message:       msgNoTrajectory,
			FrameCount:    &frameCount,
			SkippedFrames: skipped,
		}
	}

	return domain.ChargeThrowData{
		Source:        domain.ChargeSourceLIGGGHTS,
		Message:       msgChargeThrowOK,
		FrameCount:    &frameCount,
		SkippedFrames: skipped,
		Trajectories:  trajectories,
		Summary:       Summarize(trajectories),
	}
}

// Unavailable returns a charge throw result without trajectories.
func Unavailable(message string) domain.ChargeThrowData {
	return domain.ChargeThrowData{Source: domain.ChargeSourceUnavailable, Message: message}
}

// SelectFinalRevolution returns the frames whose timestep falls within one
// revolution of the last frame's timestep.
func SelectFinalRevolution(frames []Frame, stepsPerRevolution int64) []Frame {
	if len(frames) == 0 {
		return nil
	}
	end := frames[len(frames)-1].Timestep
	start := max(0, end-stepsPerRevolution)

	selected := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if f.Timestep >= start {
			selected = append(selected, f)
		}
	}
	return selected
}

// BuildTrajectories assembles per-particle paths across frames in order.
// At most limit particles are admitted; admitted particles keep collecting
// points after the limit is reached. Paths with fewer than two points are dropped.
func BuildTrajectories(frames []Frame, limit int) []domain.ParticleTrajectory {
	index := make(map[int64]int)
	var all []domain.ParticleTrajectory
	for _, f := range frames {
		for _, a := range f.Atoms {
			i, ok := index[a.ID]
			if !ok {
				if len(all) >= limit {
					continue
				}
				i = len(all)
				index[a.ID] = i
				all = append(all, domain.ParticleTrajectory{ParticleID: a.ID})
			}
			all[i].Points = append(all[i].Points, domain.TrajectoryPoint{X: a.X, Y: a.Y, Speed: a.Speed})
		}
	}

	kept := all[:0]
	for _, t := range all {
		if len(t.Points) > 1 {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// Summarize computes speed statistics over every trajectory point.
func Summarize(trajectories []domain.ParticleTrajectory) *domain.ThrowSummary {
	var speeds []float64
	for _, t := range trajectories {
		for _, pt := range t.Points {
			speeds = append(speeds, pt.Speed)
		}
	}
	if len(speeds) == 0 {
		return nil
	}

	sorted := append([]float64(nil), speeds...)
	sort.Float64s(sorted)
	return &domain.ThrowSummary{
		ParticleCount: len(trajectories),
		PointCount:    len(speeds),
		MeanSpeed:     stat.Mean(speeds, nil),
		MaxSpeed:      floats.Max(speeds),
		P90Speed:      stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
}

func planarSpeed(vx, vy float64) float64 {
	return math.Hypot(vx, vy)
}
