package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompetitionState classifies where a competition sits on its schedule.
type CompetitionState string

const (
	CompetitionStateNotStarted CompetitionState = "NOT_STARTED"
	CompetitionStateInProgress CompetitionState = "IN_PROGRESS"
	CompetitionStateFinished   CompetitionState = "FINISHED"
)

// Competition is a single time-boxed elimination quiz.
type Competition struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Details       string          `json:"details,omitempty"`
	StartAt       time.Time       `json:"start_at"`
	PrizeAmount   decimal.Decimal `json:"prize_amount"`
	SplitPrize    bool            `json:"split_prize"`
	Token         string          `json:"token"`
	TokenAddress  string          `json:"token_address"`
	ChainID       int             `json:"chain_id"`
	HintCount     int             `json:"hint_count"`
	Links         json.RawMessage `json:"links,omitempty"`
	QuestionCount int             `json:"question_count"`
	IsActive      bool            `json:"is_active"`
	WinnerCount   int             `json:"winner_count"`
	TxHash        *string         `json:"tx_hash,omitempty"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
