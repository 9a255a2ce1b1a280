package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/xiaot623/millrun/internal/domain"
	"github.com/xiaot623/millrun/internal/hub"
	"github.com/xiaot623/millrun/internal/policy"
	"github.com/xiaot623/millrun/internal/solver"
)

// CreateRun validates params, checks the plausibility policy and runs the
// solver. It blocks until the solver exits. Validation failures and policy
// denials are returned as *domain.ValidationError before anything touches disk.
func (s *Service) CreateRun(ctx context.Context, params domain.MillParams) (*domain.RunResult, error) {
	cfg, err := domain.Validate(params)
	if err != nil {
		return nil, err
	}

	var decision policy.Decision
	if s.policy != nil {
		decision, err = s.policy.Evaluate(ctx, policy.NewInput(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policy: %w", err)
		}
		if decision.Denied() {
			return nil, &domain.ValidationError{Violations: decision.Deny}
		}
	}

	// The run outlives request cancellation once the solver starts.
	runCtx := context.WithoutCancel(ctx)
	indexed := false
	var runID string

	observer := func(id string, stage domain.EventType, detail map[string]any) {
		if stage == domain.EventTypeRunStarted {
			runID = id
			indexed = s.indexRun(runCtx, id, cfg, decision, detail)
		}
		if !indexed {
			return
		}
		if err := s.recordEvent(runCtx, id, stage, detail); err != nil {
			log.Printf("ERROR: failed to record %s event: %v", stage, err)
		}
		if stage == domain.EventTypeRunStarted {
			if err := s.recordEvent(runCtx, id, domain.EventTypePolicyDecision, decision); err != nil {
				log.Printf("ERROR: failed to record policy_decision event: %v", err)
			}
		}
	}

	artifacts, err := s.runner.RunWithObserver(cfg, observer)
	if err != nil {
		if indexed {
			s.failIndexedRun(runCtx, runID, err)
		}
		return nil, fmt.Errorf("failed to run solver: %w", err)
	}

	if indexed {
		if err := s.store.CompleteRun(runCtx, artifacts); err != nil {
			log.Printf("ERROR: failed to complete run %s: %v", artifacts.RunID, err)
		}
		if err := s.recordEvent(runCtx, artifacts.RunID, domain.TerminalEventType(artifacts.Status), map[string]any{
			"status":  artifacts.Status,
			"message": artifacts.Message,
		}); err != nil {
			log.Printf("ERROR: failed to record terminal event: %v", err)
		}
	}

	s.broadcast(artifacts.RunID, hub.RunFinishedMessage{
		BaseMessage: hub.BaseMessage{Type: hub.TypeRunFinished, Ts: time.Now().UnixMilli(), RunID: artifacts.RunID},
		Run:         *artifacts,
	})

	log.Printf("INFO: run %s finished: %s (%s)", artifacts.RunID, artifacts.Status, artifacts.Message)
	return &domain.RunResult{RunArtifacts: *artifacts, Advisories: decision.Warn}, nil
}

// indexRun adds the running row for a new run. Index failures never fail the run.
func (s *Service) indexRun(ctx context.Context, runID string, cfg domain.MillConfig, decision policy.Decision, detail map[string]any) bool {
	outputDir, _ := detail["output_dir"].(string)
	record := &domain.RunRecord{
		RunArtifacts: domain.RunArtifacts{
			RunID:     runID,
			Status:    domain.RunStatusRunning,
			OutputDir: outputDir,
			InputFile: filepath.Join(outputDir, solver.InputFileName),
			LogFile:   filepath.Join(outputDir, solver.LogFileName),
		},
		Config:     cfg,
		Advisories: decision.Warn,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateRun(ctx, record); err != nil {
		log.Printf("ERROR: failed to index run %s: %v", runID, err)
		return false
	}
	return true
}

// failIndexedRun closes the index row of a run whose directory was created
// but whose solver never produced artifacts.
func (s *Service) failIndexedRun(ctx context.Context, runID string, cause error) {
	artifacts := &domain.RunArtifacts{
		RunID:   runID,
		Status:  domain.RunStatusFailed,
		Message: cause.Error(),
	}
	if err := s.store.CompleteRun(ctx, artifacts); err != nil {
		log.Printf("ERROR: failed to complete run %s: %v", runID, err)
	}
	if err := s.recordEvent(ctx, runID, domain.EventTypeRunFailed, map[string]any{"error": cause.Error()}); err != nil {
		log.Printf("ERROR: failed to record run_failed event: %v", err)
	}
}
