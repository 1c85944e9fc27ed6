package models

import "github.com/google/uuid"

// Question belongs to exactly one competition. Numbers are 1-based and
// contiguous within a competition.
type Question struct {
	ID            uuid.UUID `json:"id"`
	CompetitionID uuid.UUID `json:"competition_id"`
	Number        int       `json:"number"`
	Text          string    `json:"text"`
	Choices       []Choice  `json:"choices,omitempty"`
}

// Choice is one selectable answer. Exactly one choice per question is
// correct; hinted choices are the ones revealed when a hint is spent.
type Choice struct {
	ID             uuid.UUID `json:"id"`
	QuestionID     uuid.UUID `json:"question_id"`
	Text           string    `json:"text"`
	IsCorrect      bool      `json:"is_correct"`
	IsHintedChoice bool      `json:"is_hinted_choice"`
}
