// Package domain defines the core domain models for the mill run service.
package domain

// RunStatus represents the outcome of a run.
type RunStatus string

const (
	// RunStatusRunning is only ever seen in the run index while the solver is executing.
	RunStatusRunning   RunStatus = "running"
	RunStatusDryRun    RunStatus = "dry-run"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status is a final run outcome.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusDryRun, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// ChargeSource says where charge throw data came from.
type ChargeSource string

const (
	ChargeSourceLIGGGHTS    ChargeSource = "liggghts"
	ChargeSourceUnavailable ChargeSource = "unavailable"
)

// EventType represents the type of a run event.
type EventType string

const (
	EventTypeRunStarted           EventType = "run_started"
	EventTypePolicyDecision       EventType = "policy_decision"
	EventTypeDeckWritten          EventType = "deck_written"
	EventTypeSolverStarted        EventType = "solver_started"
	EventTypeSolverMissing        EventType = "solver_missing"
	EventTypeSolverExited         EventType = "solver_exited"
	EventTypeChargeThrowExtracted EventType = "charge_throw_extracted"
	EventTypeRunCompleted         EventType = "run_completed"
	EventTypeRunFailed            EventType = "run_failed"
	EventTypeRunDryRun            EventType = "run_dry_run"
)

// TerminalEventType maps a final run status to the event that announces it.
func TerminalEventType(status RunStatus) EventType {
	switch status {
	case RunStatusCompleted:
		return EventTypeRunCompleted
	case RunStatusDryRun:
		return EventTypeRunDryRun
	default:
		return EventTypeRunFailed
	}
}
