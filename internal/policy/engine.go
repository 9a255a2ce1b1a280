// Package policy evaluates mill configurations against an OPA plausibility policy.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/millrun/internal/domain"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Input is the document the policy sees as `input`.
type Input struct {
	domain.MillConfig
	CriticalRPM float64 `json:"critical_rpm"`
	RevolutionS float64 `json:"revolution_s"`
}

// Decision holds the findings of one evaluation. Deny findings reject the run.
type Decision struct {
	Deny []domain.FieldViolation `json:"deny"`
	Warn []domain.FieldViolation `json:"warn"`
}

// Denied reports whether the configuration must be rejected.
func (d Decision) Denied() bool {
	return len(d.Deny) > 0
}

// NewInput derives the policy input for cfg.
func NewInput(cfg domain.MillConfig) Input {
	return Input{
		MillConfig:  cfg,
		CriticalRPM: cfg.CriticalRPM(),
		RevolutionS: 60 / cfg.RPM,
	}
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.mill_policy"),
		rego.Module("mill_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy module at path. An empty path selects DefaultPolicy.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate runs the policy for one configuration.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, nil
	}

	// The package document is an object; deny and warn are sets of findings.
	raw, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to encode policy result: %w", err)
	}
	var decision Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return Decision{}, fmt.Errorf("unexpected policy result: %w", err)
	}
	return decision, nil
}

// DefaultPolicy only warns. It flags configurations the solver accepts but
// that are unlikely to describe a working mill.
const DefaultPolicy = `
package mill_policy

import rego.v1

warn contains finding if {
	input.rpm > input.critical_rpm
	finding := {
		"field": "rpm",
		"message": sprintf("rpm is above the critical speed of %v rpm; the charge will centrifuge", [input.critical_rpm]),
	}
}

warn contains finding if {
	input.media_fill_fraction < 0.2
	finding := {"field": "media_fill_fraction", "message": "fill fraction below 0.2 is unusually low for a tumbling mill"}
}

warn contains finding if {
	input.media_fill_fraction > 0.5
	finding := {"field": "media_fill_fraction", "message": "fill fraction above 0.5 is unusually high for a tumbling mill"}
}

warn contains finding if {
	input.sim_time_s < input.revolution_s
	finding := {
		"field": "sim_time_s",
		"message": sprintf("simulation is shorter than one revolution (%v s); charge throw covers a partial turn", [input.revolution_s]),
	}
}
`
