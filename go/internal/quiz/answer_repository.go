package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/sqlutil"
)

// AnswerRepository persists submitted answers. The (enrollment, question)
// unique constraint is the arbiter for concurrent duplicate submissions.
type AnswerRepository struct {
	db *sql.DB
}

func NewAnswerRepository(db *sql.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

const pgUniqueViolation = "23505"

func (r *AnswerRepository) CreateAnswer(ctx context.Context, enrollmentID, questionID, choiceID uuid.UUID, isCorrect bool) (*models.Answer, error) {
	a := models.Answer{
		ID:           uuid.New(),
		EnrollmentID: enrollmentID,
		QuestionID:   questionID,
		ChoiceID:     &choiceID,
		IsCorrect:    isCorrect,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO answers (id, enrollment_id, question_id, choice_id, is_correct)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		a.ID, enrollmentID, questionID, choiceID, isCorrect).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("answer for question %s: %w", questionID, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}
	return &a, nil
}

// ListAnswers returns the enrollment's stored answers ordered by question
// number.
func (r *AnswerRepository) ListAnswers(ctx context.Context, enrollmentID uuid.UUID) ([]models.Answer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.enrollment_id, a.question_id, a.choice_id, a.is_correct, a.created_at
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.enrollment_id = $1
		 ORDER BY q.number`, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var (
			a      models.Answer
			choice uuid.NullUUID
		)
		if err := rows.Scan(&a.ID, &a.EnrollmentID, &a.QuestionID, &choice, &a.IsCorrect, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		a.ChoiceID = sqlutil.FromNullUUID(choice)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CountAnswers returns how many distinct questions the enrollment has
// answered.
func (r *AnswerRepository) CountAnswers(ctx context.Context, enrollmentID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT question_id) FROM answers WHERE enrollment_id = $1`, enrollmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return n, nil
}

// HasWrongAnswer reports whether the enrollment ever picked an incorrect
// choice. One wrong answer is terminal for eligibility.
func (r *AnswerRepository) HasWrongAnswer(ctx context.Context, enrollmentID uuid.UUID) (bool, error) {
	var wrong bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM answers WHERE enrollment_id = $1 AND NOT is_correct)`,
		enrollmentID).Scan(&wrong)
	if err != nil {
		return false, fmt.Errorf("failed to check wrong answers: %w", err)
	}
	return wrong, nil
}
