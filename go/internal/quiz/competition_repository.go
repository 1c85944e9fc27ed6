package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/sqlutil"
)

// CompetitionRepository reads and settles competitions. Competitions and
// their questions are created by the admin API, never here.
type CompetitionRepository struct {
	db *sql.DB
}

func NewCompetitionRepository(db *sql.DB) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

const competitionColumns = `
	c.id, c.title, c.details, c.start_at, c.prize_amount, c.split_prize,
	c.token, c.token_address, c.chain_id, c.hint_count, c.links,
	c.is_active, c.winner_count, c.tx_hash, c.settled_at, c.created_at,
	(SELECT COUNT(*) FROM questions q WHERE q.competition_id = c.id) AS question_count`

func (r *CompetitionRepository) GetCompetition(ctx context.Context, id uuid.UUID) (*models.Competition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+competitionColumns+` FROM competitions c WHERE c.id = $1`, id)
	comp, err := scanCompetition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("competition %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	return comp, nil
}

// ListActive returns active competitions, newest first. Used to seed the
// driver registry at startup and to serve the competition list topic.
func (r *CompetitionRepository) ListActive(ctx context.Context) ([]*models.Competition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+competitionColumns+` FROM competitions c WHERE c.is_active ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active competitions: %w", err)
	}
	defer rows.Close()

	var comps []*models.Competition
	for rows.Next() {
		comp, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competition: %w", err)
		}
		comps = append(comps, comp)
	}
	return comps, rows.Err()
}

// SetTxHash records the settlement transaction exactly once. A second call
// for the same competition is a no-op, which keeps payout retries safe.
func (r *CompetitionRepository) SetTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE competitions SET tx_hash = $2 WHERE id = $1 AND tx_hash IS NULL`, id, txHash)
	if err != nil {
		return fmt.Errorf("failed to set tx hash: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already settled or missing; callers check SettledAt first.
		return nil
	}
	return nil
}

// Deactivate retires a competition. The driver calls this after
// settlement so registry syncs stop scheduling it.
func (r *CompetitionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE competitions SET is_active = FALSE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to deactivate competition: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompetition(row scannable) (*models.Competition, error) {
	var (
		comp      models.Competition
		details   sql.NullString
		prize     string
		links     pqtype.NullRawMessage
		txHash    sql.NullString
		settledAt sql.NullTime
	)
	err := row.Scan(
		&comp.ID, &comp.Title, &details, &comp.StartAt, &prize, &comp.SplitPrize,
		&comp.Token, &comp.TokenAddress, &comp.ChainID, &comp.HintCount, &links,
		&comp.IsActive, &comp.WinnerCount, &txHash, &settledAt, &comp.CreatedAt,
		&comp.QuestionCount,
	)
	if err != nil {
		return nil, err
	}
	comp.Details = sqlutil.FromSqlString(details, "")
	amount, err := decimal.NewFromString(prize)
	if err != nil {
		return nil, fmt.Errorf("invalid prize amount %q: %w", prize, err)
	}
	comp.PrizeAmount = amount
	if links.Valid {
		comp.Links = links.RawMessage
	}
	comp.TxHash = sqlutil.FromSqlStringPtr(txHash)
	comp.SettledAt = sqlutil.FromSqlTime(settledAt)
	return &comp, nil
}
