package hub

import "github.com/xiaot623/millrun/internal/domain"

// Message types from client to server
const (
	TypeSubscribe = "subscribe"
)

// Message types from server to client
const (
	TypeSubscribed  = "subscribed"
	TypeEvent       = "event"
	TypeRunFinished = "run_finished"
	TypeError       = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type  string `json:"type"`
	Ts    int64  `json:"ts"`
	RunID string `json:"run_id,omitempty"`
}

// SubscribeMessage switches the connection to another run; an empty run_id follows all runs.
type SubscribeMessage struct {
	BaseMessage
}

// EventMessage carries one recorded run event.
type EventMessage struct {
	BaseMessage
	Event domain.Event `json:"event"`
}

// RunFinishedMessage carries the final artifacts of a run.
type RunFinishedMessage struct {
	BaseMessage
	Run domain.RunArtifacts `json:"run"`
}

// ErrorMessage reports a protocol error to one client.
type ErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}
