// Integration events exchanged between services through the event bus.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every integration event.
//
// EventName is defined on the value type and returns a constant, the zero value of an event type
// knows its own name.
type Event interface {
	EventId() string
	EventName() string
	OccurredAt() time.Time
}

// Envelope shared by all integration events, embedded and inlined in the payload.
type IntegrationEvent struct {
	Id         uuid.UUID `json:"id"`
	OccurredOn time.Time `json:"occurredOn"`
	EventType  string    `json:"eventType"`
}

func NewIntegrationEvent(eventType string) IntegrationEvent {
	return IntegrationEvent{
		Id:         uuid.New(),
		OccurredOn: time.Now().UTC(),
		EventType:  eventType,
	}
}

func (e IntegrationEvent) EventId() string {
	return e.Id.String()
}

func (e IntegrationEvent) OccurredAt() time.Time {
	return e.OccurredOn
}
