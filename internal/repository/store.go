// Package repository defines the run index interface and its SQLite implementation.
package repository

import (
	"context"
	"errors"

	"github.com/xiaot623/millrun/internal/domain"
)

// ErrNotFound is returned when a run does not exist in the index.
var ErrNotFound = errors.New("not found")

// Store defines the interface for the run index.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	CompleteRun(ctx context.Context, artifacts *domain.RunArtifacts) error

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Lifecycle
	Close() error
}
