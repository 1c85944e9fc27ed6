package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/witslabs/quizwall/go/internal/models"
)

// QuestionRepository reads questions and choices.
type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, competition_id, number, text FROM questions WHERE id = $1`, id)
	return r.scanWithChoices(ctx, row)
}

func (r *QuestionRepository) GetQuestionByNumber(ctx context.Context, competitionID uuid.UUID, number int) (*models.Question, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, competition_id, number, text FROM questions WHERE competition_id = $1 AND number = $2`,
		competitionID, number)
	return r.scanWithChoices(ctx, row)
}

// GetChoice resolves a choice and asserts it belongs to the question.
func (r *QuestionRepository) GetChoice(ctx context.Context, questionID, choiceID uuid.UUID) (*models.Choice, error) {
	var c models.Choice
	err := r.db.QueryRowContext(ctx,
		`SELECT id, question_id, text, is_correct, is_hinted_choice
		 FROM choices WHERE id = $1 AND question_id = $2`, choiceID, questionID).
		Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect, &c.IsHintedChoice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("choice %s: %w", choiceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get choice: %w", err)
	}
	return &c, nil
}

// CorrectChoiceID returns the single correct choice for a question.
func (r *QuestionRepository) CorrectChoiceID(ctx context.Context, questionID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM choices WHERE question_id = $1 AND is_correct`, questionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("correct choice for question %s: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get correct choice: %w", err)
	}
	return id, nil
}

// HintedChoiceIDs returns the choices a hint reveals for a question.
func (r *QuestionRepository) HintedChoiceIDs(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM choices WHERE question_id = $1 AND is_hinted_choice`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hinted choices: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan hinted choice: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *QuestionRepository) scanWithChoices(ctx context.Context, row *sql.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.CompetitionID, &q.Number, &q.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, question_id, text, is_correct, is_hinted_choice
		 FROM choices WHERE question_id = $1 ORDER BY id`, q.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect, &c.IsHintedChoice); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		q.Choices = append(q.Choices, c)
	}
	return &q, rows.Err()
}
