package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Enrollment ties a participant to a competition. Unique per
// (user, competition). IsWinner and AmountWon are written only by
// settlement.
type Enrollment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	CompetitionID uuid.UUID       `json:"competition_id"`
	WalletAddress string          `json:"wallet_address"`
	HintCount     int             `json:"hint_count"`
	IsWinner      bool            `json:"is_winner"`
	AmountWon     decimal.Decimal `json:"amount_won"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Answer records one submitted choice. Unique per (enrollment, question).
// ChoiceID is nil only on synthetic rows representing a missed question in
// a participant's answer history; those rows are never persisted.
type Answer struct {
	ID           uuid.UUID  `json:"id"`
	EnrollmentID uuid.UUID  `json:"enrollment_id"`
	QuestionID   uuid.UUID  `json:"question_id"`
	ChoiceID     *uuid.UUID `json:"choice_id"`
	IsCorrect    bool       `json:"is_correct"`
	CreatedAt    time.Time  `json:"created_at"`
}
