// Package service coordinates validation, policy, the solver and the run index.
package service

import (
	"context"

	"github.com/xiaot623/millrun/internal/domain"
	"github.com/xiaot623/millrun/internal/policy"
	"github.com/xiaot623/millrun/internal/repository"
	"github.com/xiaot623/millrun/internal/solver"
)

// SolverRunner executes one mill run.
type SolverRunner interface {
	RunWithObserver(cfg domain.MillConfig, o solver.Observer) (*domain.RunArtifacts, error)
}

// PolicyEvaluator checks a validated configuration.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input policy.Input) (policy.Decision, error)
}

// Broadcaster pushes messages to run subscribers.
type Broadcaster interface {
	BroadcastJSON(runID string, v interface{}) error
}

type Service struct {
	store  repository.Store
	runner SolverRunner
	policy PolicyEvaluator
	hub    Broadcaster
}

// New creates the service. policyEngine and hub may be nil.
func New(store repository.Store, runner SolverRunner, policyEngine PolicyEvaluator, hub Broadcaster) *Service {
	return &Service{
		store:  store,
		runner: runner,
		policy: policyEngine,
		hub:    hub,
	}
}
