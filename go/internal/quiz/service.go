package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/rounds"
	"github.com/witslabs/quizwall/go/internal/schedule"
)

// CompetitionStore is what the service needs from competition storage.
type CompetitionStore interface {
	GetCompetition(ctx context.Context, id uuid.UUID) (*models.Competition, error)
}

// QuestionStore is what the service needs from question storage.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	GetQuestionByNumber(ctx context.Context, competitionID uuid.UUID, number int) (*models.Question, error)
	GetChoice(ctx context.Context, questionID, choiceID uuid.UUID) (*models.Choice, error)
	CorrectChoiceID(ctx context.Context, questionID uuid.UUID) (uuid.UUID, error)
	HintedChoiceIDs(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error)
}

// EnrollmentStore is what the service needs from enrollment storage.
type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, userID, competitionID uuid.UUID) (*models.Enrollment, error)
	CountEnrollments(ctx context.Context, competitionID uuid.UUID) (int, error)
	AnswerSnapshot(ctx context.Context, competitionID uuid.UUID) ([]rounds.EnrollmentAnswers, error)
	UseHint(ctx context.Context, enrollmentID uuid.UUID, hinted []uuid.UUID) (int, []uuid.UUID, error)
}

// AnswerStore is what the service needs from answer storage.
type AnswerStore interface {
	CreateAnswer(ctx context.Context, enrollmentID, questionID, choiceID uuid.UUID, isCorrect bool) (*models.Answer, error)
	ListAnswers(ctx context.Context, enrollmentID uuid.UUID) ([]models.Answer, error)
	CountAnswers(ctx context.Context, enrollmentID uuid.UUID) (int, error)
	HasWrongAnswer(ctx context.Context, enrollmentID uuid.UUID) (bool, error)
}

// Service is the read/submit surface shared by the gateway commands and
// the round driver.
type Service struct {
	competitions CompetitionStore
	questions    QuestionStore
	enrollments  EnrollmentStore
	answers      AnswerStore
	windows      schedule.Windows
}

func NewService(
	competitions CompetitionStore,
	questions QuestionStore,
	enrollments EnrollmentStore,
	answers AnswerStore,
	windows schedule.Windows,
) *Service {
	return &Service{
		competitions: competitions,
		questions:    questions,
		enrollments:  enrollments,
		answers:      answers,
		windows:      windows,
	}
}

func (s *Service) Windows() schedule.Windows { return s.windows }

func (s *Service) GetCompetition(ctx context.Context, id uuid.UUID) (*models.Competition, error) {
	return s.competitions.GetCompetition(ctx, id)
}

// ChoiceView is a client-facing choice. IsCorrect stays nil until the
// question's answer window has closed.
type ChoiceView struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect *bool     `json:"is_correct"`
}

// QuestionView is a client-facing question.
type QuestionView struct {
	ID            uuid.UUID    `json:"id"`
	CompetitionID uuid.UUID    `json:"competition_id"`
	Number        int          `json:"number"`
	Text          string       `json:"text"`
	Choices       []ChoiceView `json:"choices"`
}

// ViewQuestion strips answer data a client must not see yet.
func ViewQuestion(q *models.Question, revealAnswer bool) QuestionView {
	v := QuestionView{
		ID:            q.ID,
		CompetitionID: q.CompetitionID,
		Number:        q.Number,
		Text:          q.Text,
		Choices:       make([]ChoiceView, len(q.Choices)),
	}
	for i, c := range q.Choices {
		cv := ChoiceView{ID: c.ID, Text: c.Text}
		if revealAnswer {
			correct := c.IsCorrect
			cv.IsCorrect = &correct
		}
		v.Choices[i] = cv
	}
	return v
}

// CurrentQuestion returns the question visible at now. ErrNotFound before
// the first reveal or when the schedule is exhausted past its questions.
func (s *Service) CurrentQuestion(ctx context.Context, competitionID uuid.UUID, now time.Time) (*QuestionView, error) {
	comp, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	number := s.windows.CurrentQuestionNumber(comp.StartAt, comp.QuestionCount, now)
	if number == 0 {
		return nil, fmt.Errorf("competition has not started: %w", ErrNotFound)
	}
	return s.QuestionByNumber(ctx, comp, number, now)
}

// QuestionByNumber returns a question view gated on its reveal time.
func (s *Service) QuestionByNumber(ctx context.Context, comp *models.Competition, number int, now time.Time) (*QuestionView, error) {
	if s.windows.QuestionRevealAt(comp.StartAt, number).After(now) {
		return nil, fmt.Errorf("question %d not yet visible: %w", number, ErrNotFound)
	}
	q, err := s.questions.GetQuestionByNumber(ctx, comp.ID, number)
	if err != nil {
		return nil, err
	}
	reveal := !s.windows.AnswerRevealAt(comp.StartAt, number).After(now)
	v := ViewQuestion(q, reveal)
	return &v, nil
}

// Stats is the payload behind stats_update events and GET_STATS queries.
type Stats struct {
	UsersParticipating  int             `json:"users_participating"`
	PrizeToWin          decimal.Decimal `json:"prize_to_win"`
	TotalParticipants   int             `json:"total_participants"`
	QuestionsCount      int             `json:"questions_count"`
	HintCount           int             `json:"hint_count"`
	PreviousRoundLosses int             `json:"previous_round_losses"`
}

// GetStats assembles the live survivor view for a competition.
func (s *Service) GetStats(ctx context.Context, competitionID uuid.UUID, now time.Time) (*Stats, error) {
	comp, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.enrollments.AnswerSnapshot(ctx, comp.ID)
	if err != nil {
		return nil, err
	}
	total, err := s.enrollments.CountEnrollments(ctx, comp.ID)
	if err != nil {
		return nil, err
	}

	started := s.windows.IsStarted(comp.StartAt, now)
	round := s.windows.CurrentQuestionNumber(comp.StartAt, comp.QuestionCount, now)
	surviving := rounds.SurvivorCount(snapshot, round, comp.QuestionCount)

	prizeToWin := comp.PrizeAmount
	if comp.SplitPrize && surviving > 0 {
		prizeToWin = comp.PrizeAmount.Div(decimal.NewFromInt(int64(surviving)))
	}

	return &Stats{
		UsersParticipating:  surviving,
		PrizeToWin:          prizeToWin,
		TotalParticipants:   total,
		QuestionsCount:      comp.QuestionCount,
		HintCount:           comp.HintCount,
		PreviousRoundLosses: rounds.PreviousRoundLosses(snapshot, round, comp.QuestionCount, started),
	}, nil
}

// AnswerResult is returned from a successful submission. The correct
// choice is always disclosed so the client can reveal it immediately.
type AnswerResult struct {
	QuestionNumber  int       `json:"question_number"`
	CorrectChoiceID uuid.UUID `json:"correct_choice_id"`
	IsCorrect       bool      `json:"is_correct"`
}

// SubmitAnswer records a participant's choice. Eligibility is the
// caller's gate; this enforces only visibility and the one-answer-per-
// question constraint.
func (s *Service) SubmitAnswer(ctx context.Context, userID, competitionID, questionID, choiceID uuid.UUID, now time.Time) (*AnswerResult, error) {
	comp, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if s.windows.IsFinished(comp.StartAt, comp.QuestionCount, now) {
		return nil, fmt.Errorf("competition is over: %w", ErrIneligible)
	}
	q, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.CompetitionID != comp.ID {
		return nil, fmt.Errorf("question %s not in competition %s: %w", questionID, competitionID, ErrNotFound)
	}
	if s.windows.QuestionRevealAt(comp.StartAt, q.Number).After(now) {
		return nil, fmt.Errorf("question %d not yet visible: %w", q.Number, ErrNotFound)
	}
	choice, err := s.questions.GetChoice(ctx, questionID, choiceID)
	if err != nil {
		return nil, err
	}
	enr, err := s.enrollments.GetEnrollment(ctx, userID, competitionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.answers.CreateAnswer(ctx, enr.ID, questionID, choiceID, choice.IsCorrect); err != nil {
		return nil, err
	}

	correctID, err := s.questions.CorrectChoiceID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{
		QuestionNumber:  q.Number,
		CorrectChoiceID: correctID,
		IsCorrect:       choice.IsCorrect,
	}, nil
}

// AnswerHistory returns stored answers plus synthetic rows for questions
// the participant missed, so a reconnecting client sees its full slate up
// to the live position. Synthetic rows carry a nil choice and are never
// persisted.
func (s *Service) AnswerHistory(ctx context.Context, userID, competitionID uuid.UUID, now time.Time) ([]models.Answer, error) {
	comp, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	enr, err := s.enrollments.GetEnrollment(ctx, userID, competitionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListAnswers(ctx, enr.ID)
	if err != nil {
		return nil, err
	}

	position := s.windows.CurrentQuestionNumber(comp.StartAt, comp.QuestionCount, now)
	for number := len(answers) + 1; number <= position; number++ {
		q, err := s.questions.GetQuestionByNumber(ctx, comp.ID, number)
		if err != nil {
			return nil, err
		}
		answers = append(answers, models.Answer{
			EnrollmentID: enr.ID,
			QuestionID:   q.ID,
			// Missed: no choice was ever selected.
			ChoiceID:  nil,
			IsCorrect: false,
		})
	}
	return answers, nil
}

// HintResult reports what a hint request revealed.
type HintResult struct {
	QuestionID     uuid.UUID   `json:"question_id"`
	RevealedChoice []uuid.UUID `json:"revealed_choices"`
	HintsRemaining int         `json:"hints_remaining"`
}

// UseHint spends one of the enrollment's hints on a question.
func (s *Service) UseHint(ctx context.Context, userID, competitionID, questionID uuid.UUID) (*HintResult, error) {
	enr, err := s.enrollments.GetEnrollment(ctx, userID, competitionID)
	if err != nil {
		return nil, err
	}
	hinted, err := s.questions.HintedChoiceIDs(ctx, questionID)
	if err != nil {
		return nil, err
	}
	remaining, revealed, err := s.enrollments.UseHint(ctx, enr.ID, hinted)
	if err != nil {
		return nil, err
	}
	return &HintResult{
		QuestionID:     questionID,
		RevealedChoice: revealed,
		HintsRemaining: remaining,
	}, nil
}
