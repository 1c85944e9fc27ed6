package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/rounds"
	"github.com/witslabs/quizwall/go/internal/sqlutil"
)

// EnrollmentRepository reads enrollments and applies the settlement's
// winner marks.
type EnrollmentRepository struct {
	db *sql.DB
}

func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, userID, competitionID uuid.UUID) (*models.Enrollment, error) {
	var (
		e         models.Enrollment
		amountWon string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, competition_id, wallet_address, hint_count, is_winner, amount_won, created_at
		 FROM enrollments WHERE user_id = $1 AND competition_id = $2`,
		userID, competitionID).
		Scan(&e.ID, &e.UserID, &e.CompetitionID, &e.WalletAddress, &e.HintCount,
			&e.IsWinner, &amountWon, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("enrollment: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	won, err := decimal.NewFromString(amountWon)
	if err != nil {
		return nil, fmt.Errorf("invalid amount won %q: %w", amountWon, err)
	}
	e.AmountWon = won
	return &e, nil
}

func (r *EnrollmentRepository) CountEnrollments(ctx context.Context, competitionID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE competition_id = $1`, competitionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return n, nil
}

// AnswerSnapshot aggregates every enrollment's answer history for the
// round aggregator. Answers are grouped by distinct question so duplicate
// rows cannot double-count.
func (r *EnrollmentRepository) AnswerSnapshot(ctx context.Context, competitionID uuid.UUID) ([]rounds.EnrollmentAnswers, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.wallet_address,
		        COUNT(DISTINCT a.question_id) FILTER (WHERE a.is_correct),
		        COUNT(DISTINCT a.question_id) FILTER (WHERE NOT a.is_correct)
		 FROM enrollments e
		 LEFT JOIN answers a ON a.enrollment_id = e.id
		 WHERE e.competition_id = $1
		 GROUP BY e.id, e.wallet_address`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answer snapshot: %w", err)
	}
	defer rows.Close()

	var snapshot []rounds.EnrollmentAnswers
	for rows.Next() {
		var ea rounds.EnrollmentAnswers
		if err := rows.Scan(&ea.EnrollmentID, &ea.WalletAddress, &ea.CorrectCount, &ea.WrongCount); err != nil {
			return nil, fmt.Errorf("failed to scan answer snapshot: %w", err)
		}
		snapshot = append(snapshot, ea)
	}
	return snapshot, rows.Err()
}

// MarkWinners applies the winner set as one transaction: the per-winner
// amount on each winning enrollment plus the roll-up columns and
// settled_at on the competition. Readers either see the pre-settlement
// view or the full winner set, never a partial one. Returns false without
// writing if the competition was already settled.
func (r *EnrollmentRepository) MarkWinners(ctx context.Context, competitionID uuid.UUID, winners []rounds.Winner, perWinner decimal.Decimal) (bool, error) {
	applied := false
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		var settled bool
		err := tx.QueryRowContext(ctx,
			`SELECT settled_at IS NOT NULL FROM competitions WHERE id = $1 FOR UPDATE`,
			competitionID).Scan(&settled)
		if err != nil {
			return fmt.Errorf("failed to lock competition: %w", err)
		}
		if settled {
			return nil
		}

		ids := make([]string, len(winners))
		for i, w := range winners {
			ids[i] = w.EnrollmentID.String()
		}
		if len(ids) > 0 {
			_, err = tx.ExecContext(ctx,
				`UPDATE enrollments SET is_winner = TRUE, amount_won = $2
				 WHERE id = ANY($1::uuid[])`,
				pq.Array(ids), perWinner.String())
			if err != nil {
				return fmt.Errorf("failed to mark winners: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE competitions SET winner_count = $2, settled_at = NOW() WHERE id = $1`,
			competitionID, len(winners))
		if err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// UseHint spends one hint for the enrollment and returns the hinted
// choices of the question. With no hints remaining nothing is revealed and
// the counter is not decremented further.
func (r *EnrollmentRepository) UseHint(ctx context.Context, enrollmentID uuid.UUID, hinted []uuid.UUID) (remaining int, revealed []uuid.UUID, err error) {
	err = r.db.QueryRowContext(ctx,
		`UPDATE enrollments SET hint_count = hint_count - 1
		 WHERE id = $1 AND hint_count > 0
		 RETURNING hint_count`, enrollmentID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		// Out of hints.
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to use hint: %w", err)
	}
	return remaining, hinted, nil
}
