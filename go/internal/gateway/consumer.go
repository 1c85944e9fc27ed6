package gateway

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/bus"
)

// SubscribeFunc wires the consumer to an event source. The NATS
// broadcaster's Subscribe fits after dropping its subscription handle.
type SubscribeFunc func(topic string, fn func(bus.Event)) error

// EventConsumer routes bus events into the connection pools: competition
// events to their watchers, summary events additionally to list viewers.
type EventConsumer struct {
	manager *ConnectionManager
}

func NewEventConsumer(manager *ConnectionManager) *EventConsumer {
	return &EventConsumer{manager: manager}
}

// Start subscribes to every quiz subject. With NATS this is one wildcard
// subscription covering the per-competition topics and the list topic.
func (ec *EventConsumer) Start(subscribe SubscribeFunc) error {
	return subscribe("quiz.events.>", ec.HandleEvent)
}

// HandleEvent fans one bus event into the right pools.
func (ec *EventConsumer) HandleEvent(event bus.Event) {
	switch event.Type {
	case bus.EventTypeCompetitionUpdated, bus.EventTypeEnrollmentIncreased:
		ec.manager.BroadcastToList(event)
	}

	competitionID, err := uuid.Parse(event.CompetitionID)
	if err != nil {
		log.Warn().
			Str("event_id", event.ID).
			Str("competition_id", event.CompetitionID).
			Msg("event with unparseable competition id dropped")
		return
	}
	ec.manager.BroadcastToCompetition(competitionID, event)
}
