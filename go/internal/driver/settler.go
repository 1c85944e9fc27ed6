package driver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/witslabs/quizwall/go/internal/chain"
	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/rounds"
)

// NoDistributionTxHash is recorded when settlement owes nothing on-chain,
// so a zero-winner competition still reads as settled.
const NoDistributionTxHash = "no-distribution"

// SettlementStore is what the settler needs from enrollment storage.
type SettlementStore interface {
	AnswerSnapshot(ctx context.Context, competitionID uuid.UUID) ([]rounds.EnrollmentAnswers, error)
	MarkWinners(ctx context.Context, competitionID uuid.UUID, winners []rounds.Winner, perWinner decimal.Decimal) (bool, error)
}

// TxHashStore records the payout transaction on the competition.
type TxHashStore interface {
	SetTxHash(ctx context.Context, id uuid.UUID, txHash string) error
}

// Settlement is the outcome of one settlement run. TxHash is empty when
// the payout could not be submitted; winner marks are still in place and a
// later run retries the payout alone.
type Settlement struct {
	Winners   []rounds.Winner
	PerWinner decimal.Decimal
	TxHash    string
}

// Settler closes out a finished competition in two independently
// idempotent steps: mark the winners in the database, then submit the
// distribution. Either step can be re-run safely, so a crash between them
// never double-pays. Transient submission retries are the sink's policy,
// not the settler's.
type Settler struct {
	enrollments   SettlementStore
	competitions  TxHashStore
	sink          chain.Sink
	tokenDecimals int32
}

func NewSettler(enrollments SettlementStore, competitions TxHashStore, sink chain.Sink, tokenDecimals int32) *Settler {
	return &Settler{
		enrollments:   enrollments,
		competitions:  competitions,
		sink:          sink,
		tokenDecimals: tokenDecimals,
	}
}

// Settle marks winners and pays them out. Safe to call again for an
// already-settled competition: the winner marks are guarded by the stored
// settlement timestamp and the payout by the stored transaction hash.
func (s *Settler) Settle(ctx context.Context, comp *models.Competition) (*Settlement, error) {
	snapshot, err := s.enrollments.AnswerSnapshot(ctx, comp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement snapshot: %w", err)
	}
	winners, perWinner := rounds.ComputeWinners(snapshot, comp.QuestionCount, comp.PrizeAmount, comp.SplitPrize)

	applied, err := s.enrollments.MarkWinners(ctx, comp.ID, winners, perWinner)
	if err != nil {
		return nil, fmt.Errorf("failed to mark winners: %w", err)
	}
	if !applied {
		log.Info().Str("competition_id", comp.ID.String()).Msg("winners already marked; skipping to payout")
	}

	settlement := &Settlement{Winners: winners, PerWinner: perWinner}

	if comp.TxHash != nil {
		settlement.TxHash = *comp.TxHash
		return settlement, nil
	}

	if len(winners) == 0 || perWinner.IsZero() {
		if err := s.competitions.SetTxHash(ctx, comp.ID, NoDistributionTxHash); err != nil {
			return nil, err
		}
		settlement.TxHash = NoDistributionTxHash
		log.Info().Str("competition_id", comp.ID.String()).Msg("nothing to distribute")
		return settlement, nil
	}

	txHash, err := s.distribute(ctx, winners)
	if err != nil {
		// Winner marks are durable; only the payout is outstanding. A
		// later settlement run retries just this step.
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("payout not submitted")
		return settlement, nil
	}
	if err := s.competitions.SetTxHash(ctx, comp.ID, txHash); err != nil {
		return nil, err
	}
	settlement.TxHash = txHash
	return settlement, nil
}

func (s *Settler) distribute(ctx context.Context, winners []rounds.Winner) (string, error) {
	addresses := make([]string, len(winners))
	amounts := make([]*big.Int, len(winners))
	for i, w := range winners {
		addresses[i] = w.WalletAddress
		amounts[i] = w.Amount.Shift(s.tokenDecimals).BigInt()
	}
	return s.sink.Distribute(ctx, addresses, amounts)
}
