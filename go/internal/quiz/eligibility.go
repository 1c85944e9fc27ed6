package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/schedule"
)

// Eligible is the elimination predicate. A participant stays eligible
// while enrolled in an active, in-progress competition, has never picked a
// wrong choice, and has kept pace with the live schedule. It is evaluated
// fresh on every answer attempt and schedule tick; nothing here is cached.
func Eligible(comp *models.Competition, w schedule.Windows, enrolled, hasWrongAnswer bool, answeredCount int, now time.Time) bool {
	if !enrolled {
		return false
	}
	if !comp.IsActive || !w.IsInProgress(comp.StartAt, comp.QuestionCount, now) {
		return false
	}
	if hasWrongAnswer {
		return false
	}
	// Falling behind the schedule eliminates the same as a wrong answer,
	// though no wrong answer is recorded for the missed question.
	expectedAnswered := w.CurrentQuestionNumber(comp.StartAt, comp.QuestionCount, now) - 1
	return expectedAnswered <= answeredCount
}

// IsEligible evaluates Eligible against stored state.
func (s *Service) IsEligible(ctx context.Context, userID, competitionID uuid.UUID, now time.Time) (bool, error) {
	comp, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return false, err
	}
	enr, err := s.enrollments.GetEnrollment(ctx, userID, competitionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	hasWrong, err := s.answers.HasWrongAnswer(ctx, enr.ID)
	if err != nil {
		return false, err
	}
	answered, err := s.answers.CountAnswers(ctx, enr.ID)
	if err != nil {
		return false, err
	}
	return Eligible(comp, s.windows, true, hasWrong, answered, now), nil
}
