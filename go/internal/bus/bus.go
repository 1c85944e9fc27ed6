// Package bus carries quiz events from the round drivers to the gateway.
// Topics are one subject per competition plus a shared list subject for
// summary changes; ordering within a topic follows the publisher.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType tags the payload union on the wire.
type EventType string

const (
	EventTypeNewQuestion         EventType = "new_question"
	EventTypeStatsUpdate         EventType = "stats_update"
	EventTypeFinish              EventType = "finish"
	EventTypeCompetitionUpdated  EventType = "competition_updated"
	EventTypeEnrollmentIncreased EventType = "enrollment_increased"
)

// Event is the envelope published for every broadcast.
type Event struct {
	ID            string          `json:"eventId"`
	Type          EventType       `json:"eventType"`
	CompetitionID string          `json:"competitionId"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEvent wraps a payload into an envelope.
func NewEvent(eventType EventType, competitionID uuid.UUID, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		CompetitionID: competitionID.String(),
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}

// Broadcaster fans an event out to every subscriber of a topic.
type Broadcaster interface {
	Broadcast(ctx context.Context, topic string, event Event) error
}

// CompetitionTopic is the per-competition subject.
func CompetitionTopic(competitionID uuid.UUID) string {
	return "quiz.events." + competitionID.String()
}

// ListTopic carries competition summary changes for list views.
const ListTopic = "quiz.events.list"
