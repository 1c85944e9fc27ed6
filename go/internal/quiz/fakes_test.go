package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/rounds"
)

// In-memory stores backing the service tests.

type fakeStore struct {
	competitions map[uuid.UUID]*models.Competition
	questions    map[uuid.UUID]*models.Question
	enrollments  map[uuid.UUID]*models.Enrollment // keyed by enrollment id
	answers      map[uuid.UUID][]models.Answer    // keyed by enrollment id
	hintsLeft    map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		competitions: map[uuid.UUID]*models.Competition{},
		questions:    map[uuid.UUID]*models.Question{},
		enrollments:  map[uuid.UUID]*models.Enrollment{},
		answers:      map[uuid.UUID][]models.Answer{},
		hintsLeft:    map[uuid.UUID]int{},
	}
}

func (f *fakeStore) GetCompetition(_ context.Context, id uuid.UUID) (*models.Competition, error) {
	comp, ok := f.competitions[id]
	if !ok {
		return nil, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	return comp, nil
}

func (f *fakeStore) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, fmt.Errorf("question: %w", ErrNotFound)
	}
	return q, nil
}

func (f *fakeStore) GetQuestionByNumber(_ context.Context, competitionID uuid.UUID, number int) (*models.Question, error) {
	for _, q := range f.questions {
		if q.CompetitionID == competitionID && q.Number == number {
			return q, nil
		}
	}
	return nil, fmt.Errorf("question %d: %w", number, ErrNotFound)
}

func (f *fakeStore) GetChoice(_ context.Context, questionID, choiceID uuid.UUID) (*models.Choice, error) {
	q, ok := f.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("question: %w", ErrNotFound)
	}
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("choice %s: %w", choiceID, ErrNotFound)
}

func (f *fakeStore) CorrectChoiceID(_ context.Context, questionID uuid.UUID) (uuid.UUID, error) {
	q, ok := f.questions[questionID]
	if !ok {
		return uuid.Nil, fmt.Errorf("question: %w", ErrNotFound)
	}
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("correct choice: %w", ErrNotFound)
}

func (f *fakeStore) HintedChoiceIDs(_ context.Context, questionID uuid.UUID) ([]uuid.UUID, error) {
	q, ok := f.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("question: %w", ErrNotFound)
	}
	var ids []uuid.UUID
	for _, c := range q.Choices {
		if c.IsHintedChoice {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, userID, competitionID uuid.UUID) (*models.Enrollment, error) {
	for _, e := range f.enrollments {
		if e.UserID == userID && e.CompetitionID == competitionID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("enrollment: %w", ErrNotFound)
}

func (f *fakeStore) CountEnrollments(_ context.Context, competitionID uuid.UUID) (int, error) {
	n := 0
	for _, e := range f.enrollments {
		if e.CompetitionID == competitionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AnswerSnapshot(_ context.Context, competitionID uuid.UUID) ([]rounds.EnrollmentAnswers, error) {
	var snapshot []rounds.EnrollmentAnswers
	for id, e := range f.enrollments {
		if e.CompetitionID != competitionID {
			continue
		}
		ea := rounds.EnrollmentAnswers{EnrollmentID: id, WalletAddress: e.WalletAddress}
		for _, a := range f.answers[id] {
			if a.IsCorrect {
				ea.CorrectCount++
			} else {
				ea.WrongCount++
			}
		}
		snapshot = append(snapshot, ea)
	}
	return snapshot, nil
}

func (f *fakeStore) UseHint(_ context.Context, enrollmentID uuid.UUID, hinted []uuid.UUID) (int, []uuid.UUID, error) {
	left := f.hintsLeft[enrollmentID]
	if left <= 0 {
		return 0, nil, nil
	}
	f.hintsLeft[enrollmentID] = left - 1
	return left - 1, hinted, nil
}

func (f *fakeStore) CreateAnswer(_ context.Context, enrollmentID, questionID, choiceID uuid.UUID, isCorrect bool) (*models.Answer, error) {
	for _, a := range f.answers[enrollmentID] {
		if a.QuestionID == questionID {
			return nil, fmt.Errorf("answer: %w", ErrConflict)
		}
	}
	a := models.Answer{
		ID:           uuid.New(),
		EnrollmentID: enrollmentID,
		QuestionID:   questionID,
		ChoiceID:     &choiceID,
		IsCorrect:    isCorrect,
		CreatedAt:    time.Now(),
	}
	f.answers[enrollmentID] = append(f.answers[enrollmentID], a)
	return &a, nil
}

func (f *fakeStore) ListAnswers(_ context.Context, enrollmentID uuid.UUID) ([]models.Answer, error) {
	return f.answers[enrollmentID], nil
}

func (f *fakeStore) CountAnswers(_ context.Context, enrollmentID uuid.UUID) (int, error) {
	return len(f.answers[enrollmentID]), nil
}

func (f *fakeStore) HasWrongAnswer(_ context.Context, enrollmentID uuid.UUID) (bool, error) {
	for _, a := range f.answers[enrollmentID] {
		if !a.IsCorrect {
			return true, nil
		}
	}
	return false, nil
}

// addCompetition seeds a competition with contiguous questions, each with
// one correct, one wrong and one hinted choice.
func (f *fakeStore) addCompetition(startAt time.Time, questionCount int) *models.Competition {
	comp := &models.Competition{
		ID:            uuid.New(),
		Title:         "test competition",
		StartAt:       startAt,
		PrizeAmount:   decimal.NewFromInt(20000),
		SplitPrize:    true,
		HintCount:     1,
		QuestionCount: questionCount,
		IsActive:      true,
	}
	f.competitions[comp.ID] = comp
	for n := 1; n <= questionCount; n++ {
		q := &models.Question{
			ID:            uuid.New(),
			CompetitionID: comp.ID,
			Number:        n,
			Text:          fmt.Sprintf("question %d", n),
		}
		q.Choices = []models.Choice{
			{ID: uuid.New(), QuestionID: q.ID, Text: "right", IsCorrect: true},
			{ID: uuid.New(), QuestionID: q.ID, Text: "wrong", IsHintedChoice: true},
			{ID: uuid.New(), QuestionID: q.ID, Text: "also wrong"},
		}
		f.questions[q.ID] = q
	}
	return comp
}

func (f *fakeStore) enroll(comp *models.Competition, wallet string) *models.Enrollment {
	e := &models.Enrollment{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		CompetitionID: comp.ID,
		WalletAddress: wallet,
		HintCount:     comp.HintCount,
	}
	f.enrollments[e.ID] = e
	f.hintsLeft[e.ID] = comp.HintCount
	return e
}

func (f *fakeStore) questionByNumber(comp *models.Competition, n int) *models.Question {
	q, err := f.GetQuestionByNumber(context.Background(), comp.ID, n)
	if err != nil {
		panic(err)
	}
	return q
}

func correctChoice(q *models.Question) uuid.UUID {
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c.ID
		}
	}
	panic("no correct choice")
}

func wrongChoice(q *models.Question) uuid.UUID {
	for _, c := range q.Choices {
		if !c.IsCorrect {
			return c.ID
		}
	}
	panic("no wrong choice")
}
