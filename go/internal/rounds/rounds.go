// Package rounds aggregates per-enrollment answer histories into survivor
// counts, loss deltas and the final winner set. The driver's settlement
// step and the gateway's stats queries share these functions so the two
// views cannot drift apart.
package rounds

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EnrollmentAnswers is a read-only snapshot of one enrollment's answer
// history, aggregated by distinct question.
type EnrollmentAnswers struct {
	EnrollmentID  uuid.UUID
	WalletAddress string
	CorrectCount  int
	WrongCount    int
}

// Winner pairs an enrollment with the amount it is owed at settlement.
type Winner struct {
	EnrollmentID  uuid.UUID
	WalletAddress string
	Amount        decimal.Decimal
}

// SurvivorCount counts enrollments that answered every question strictly
// before roundNumber correctly. A wrong answer on the current round does
// not retroactively remove survival of the rounds before it. Rounds at or
// below zero mean nobody has been tested yet, so everyone survives; rounds
// past the schedule have no survivors.
func SurvivorCount(snapshot []EnrollmentAnswers, roundNumber, questionCount int) int {
	if roundNumber <= 0 {
		return len(snapshot)
	}
	if roundNumber > questionCount {
		return 0
	}
	n := 0
	for _, e := range snapshot {
		if e.CorrectCount >= roundNumber-1 {
			n++
		}
	}
	return n
}

// PreviousRoundLosses returns how many enrollments fell between the
// previous round and roundNumber. The result is clamped at zero; earlier
// revisions of this calculation could go negative and are superseded.
//
// When the competition is not yet visible (started=false) there is no
// round to qualify against, so losses compare against the raw enrollment
// count instead.
func PreviousRoundLosses(snapshot []EnrollmentAnswers, roundNumber, questionCount int, started bool) int {
	if !started {
		return clampNonNegative(len(snapshot) - SurvivorCount(snapshot, roundNumber, questionCount))
	}
	prev := SurvivorCount(snapshot, roundNumber-1, questionCount)
	cur := SurvivorCount(snapshot, roundNumber, questionCount)
	return clampNonNegative(prev - cur)
}

// ComputeWinners returns the enrollments that answered every question
// correctly and the amount each is owed. With splitPrize the pot divides
// evenly among winners (zero winners pay nothing); otherwise every winner
// receives the full prize.
func ComputeWinners(snapshot []EnrollmentAnswers, questionCount int, prize decimal.Decimal, splitPrize bool) ([]Winner, decimal.Decimal) {
	var winners []Winner
	for _, e := range snapshot {
		if e.WrongCount == 0 && e.CorrectCount >= questionCount {
			winners = append(winners, Winner{EnrollmentID: e.EnrollmentID, WalletAddress: e.WalletAddress})
		}
	}

	perWinner := prize
	if splitPrize {
		if len(winners) == 0 {
			perWinner = decimal.Zero
		} else {
			perWinner = prize.Div(decimal.NewFromInt(int64(len(winners))))
		}
	}
	for i := range winners {
		winners[i].Amount = perWinner
	}
	return winners, perWinner
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
