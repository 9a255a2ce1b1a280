package service

import (
	"context"

	"github.com/xiaot623/millrun/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// GetRun returns the indexed run. Unknown ids yield repository.ErrNotFound.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns recent runs, newest first. limit is clamped to [1, MaxListLimit];
// zero or less selects DefaultListLimit.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	return runs, nil
}

// GetRunEvents returns the trace of a run.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
