// Package outbox records domain events in the same transaction as the
// change that produced them and relays them to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope written to outbox_events.
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
}

// NewEvent marshals payload and stamps a fresh event id.
func NewEvent(aggregateType, aggregateID, eventType string, payload interface{}) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}

// Recorder stores an event within the unit of work bound to ctx.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// Record is a stored event as read back by the publisher.
type Record struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// MemoryRecorder keeps events in a slice. Used by tests and in-memory wiring.
type MemoryRecorder struct {
	Events []Event
}

func (m *MemoryRecorder) Record(_ context.Context, evt Event) error {
	m.Events = append(m.Events, evt)
	return nil
}

// Types returns the recorded event types in order.
func (m *MemoryRecorder) Types() []string {
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.EventType
	}
	return out
}
