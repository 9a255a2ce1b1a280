package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/millrun/internal/domain"
	"github.com/xiaot623/millrun/internal/hub"
)

// recordEvent records an event to the store and pushes it to subscribers.
func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		return err
	}

	s.broadcast(runID, hub.EventMessage{
		BaseMessage: hub.BaseMessage{Type: hub.TypeEvent, Ts: event.Ts, RunID: runID},
		Event:       *event,
	})
	return nil
}

func (s *Service) broadcast(runID string, msg interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastJSON(runID, msg); err != nil {
		log.Printf("WARN: failed to broadcast to run %s: %v", runID, err)
	}
}
