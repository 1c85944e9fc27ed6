package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/quiz"
)

type fakeService struct {
	comp     *models.Competition
	question *quiz.QuestionView
	stats    *quiz.Stats
	history  []models.Answer
	hint     *quiz.HintResult

	eligible  bool
	submitErr error
	result    *quiz.AnswerResult

	submittedChoice uuid.UUID
	submitCalls     int
}

func (f *fakeService) GetCompetition(_ context.Context, id uuid.UUID) (*models.Competition, error) {
	if f.comp == nil || f.comp.ID != id {
		return nil, quiz.ErrNotFound
	}
	return f.comp, nil
}

func (f *fakeService) CurrentQuestion(_ context.Context, _ uuid.UUID, _ time.Time) (*quiz.QuestionView, error) {
	if f.question == nil {
		return nil, quiz.ErrNotFound
	}
	return f.question, nil
}

func (f *fakeService) QuestionByNumber(_ context.Context, _ *models.Competition, number int, _ time.Time) (*quiz.QuestionView, error) {
	if f.question == nil || f.question.Number != number {
		return nil, quiz.ErrNotFound
	}
	return f.question, nil
}

func (f *fakeService) GetStats(_ context.Context, _ uuid.UUID, _ time.Time) (*quiz.Stats, error) {
	if f.stats == nil {
		return nil, quiz.ErrNotFound
	}
	return f.stats, nil
}

func (f *fakeService) SubmitAnswer(_ context.Context, _, _, _, choiceID uuid.UUID, _ time.Time) (*quiz.AnswerResult, error) {
	f.submitCalls++
	f.submittedChoice = choiceID
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.result, nil
}

func (f *fakeService) AnswerHistory(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]models.Answer, error) {
	return f.history, nil
}

func (f *fakeService) UseHint(_ context.Context, _, _, _ uuid.UUID) (*quiz.HintResult, error) {
	if f.hint == nil {
		return nil, quiz.ErrNotFound
	}
	return f.hint, nil
}

func (f *fakeService) IsEligible(_ context.Context, _, _ uuid.UUID, _ time.Time) (bool, error) {
	return f.eligible, nil
}

func decodeResponse(t *testing.T, raw []byte) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func command(t *testing.T, name string, args any) []byte {
	t.Helper()
	cmd := Command{Command: name}
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		cmd.Args = data
	}
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	return raw
}

func newTestHandler(svc *fakeService) *CommandHandler {
	return NewCommandHandler(svc, clockwork.NewFakeClock())
}

func TestHandlePing(t *testing.T) {
	h := newTestHandler(&fakeService{})
	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, uuid.Nil, command(t, "PING", nil)))
	assert.Equal(t, responsePong, resp.Type)
}

func TestHandleMalformedMessage(t *testing.T) {
	h := newTestHandler(&fakeService{})
	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, uuid.Nil, []byte("{not json")))
	assert.Equal(t, responseError, resp.Type)
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newTestHandler(&fakeService{})
	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, uuid.Nil, command(t, "SHUTDOWN", nil)))
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, "unknown command", resp.Error)
}

func TestHandleGetCompetition(t *testing.T) {
	comp := &models.Competition{ID: uuid.New(), Title: "friday night quiz"}
	h := newTestHandler(&fakeService{comp: comp})

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, comp.ID, command(t, "GET_COMPETITION", nil)))
	require.Equal(t, responseCompetition, resp.Type)

	var got models.Competition
	require.NoError(t, json.Unmarshal(resp.Payload, &got))
	assert.Equal(t, comp.Title, got.Title)
}

func TestHandleGetCompetitionMissing(t *testing.T) {
	h := newTestHandler(&fakeService{})
	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, uuid.New(), command(t, "GET_COMPETITION", nil)))
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, "competition not found", resp.Error)
}

func TestHandleGetQuestionValidatesIndex(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	h := newTestHandler(&fakeService{comp: comp})

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, comp.ID,
		command(t, "GET_QUESTION", map[string]int{"index": 0})))
	assert.Equal(t, responseError, resp.Type)

	resp = decodeResponse(t, h.Handle(context.Background(), uuid.Nil, comp.ID,
		command(t, "GET_QUESTION", nil)))
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, "missing args", resp.Error)
}

func TestHandleGetQuestion(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	view := &quiz.QuestionView{ID: uuid.New(), Number: 2, Text: "second question"}
	h := newTestHandler(&fakeService{comp: comp, question: view})

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.Nil, comp.ID,
		command(t, "GET_QUESTION", map[string]int{"index": 2})))
	require.Equal(t, responseQuestion, resp.Type)

	var got quiz.QuestionView
	require.NoError(t, json.Unmarshal(resp.Payload, &got))
	assert.Equal(t, 2, got.Number)
}

func TestHandleAnswerIneligibleIsDropped(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	svc := &fakeService{comp: comp, eligible: false}
	h := newTestHandler(svc)

	raw := h.Handle(context.Background(), uuid.New(), comp.ID, command(t, "ANSWER", map[string]string{
		"questionId":       uuid.New().String(),
		"selectedChoiceId": uuid.New().String(),
	}))

	assert.Nil(t, raw)
	assert.Zero(t, svc.submitCalls)
}

func TestHandleAnswerEligible(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	choiceID := uuid.New()
	svc := &fakeService{
		comp:     comp,
		eligible: true,
		result:   &quiz.AnswerResult{QuestionNumber: 1, CorrectChoiceID: choiceID, IsCorrect: true},
	}
	h := newTestHandler(svc)

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.New(), comp.ID,
		command(t, "ANSWER", map[string]string{
			"questionId":       uuid.New().String(),
			"selectedChoiceId": choiceID.String(),
		})))
	require.Equal(t, responseAnswerResult, resp.Type)

	var got quiz.AnswerResult
	require.NoError(t, json.Unmarshal(resp.Payload, &got))
	assert.True(t, got.IsCorrect)
	assert.Equal(t, choiceID, svc.submittedChoice)
}

func TestHandleAnswerDuplicate(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	svc := &fakeService{comp: comp, eligible: true, submitErr: quiz.ErrConflict}
	h := newTestHandler(svc)

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.New(), comp.ID,
		command(t, "ANSWER", map[string]string{
			"questionId":       uuid.New().String(),
			"selectedChoiceId": uuid.New().String(),
		})))
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, "question already answered", resp.Error)
}

func TestHandleAnswerMissingChoice(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	svc := &fakeService{comp: comp, eligible: true}
	h := newTestHandler(svc)

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.New(), comp.ID,
		command(t, "ANSWER", map[string]string{"questionId": uuid.New().String()})))
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, "invalid args", resp.Error)
	assert.Zero(t, svc.submitCalls)
}

func TestHandleInternalErrorIsOpaque(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	svc := &fakeService{comp: comp, eligible: true, submitErr: errors.New("db down")}
	h := newTestHandler(svc)

	resp := decodeResponse(t, h.Handle(context.Background(), uuid.New(), comp.ID,
		command(t, "ANSWER", map[string]string{
			"questionId":       uuid.New().String(),
			"selectedChoiceId": uuid.New().String(),
		})))
	assert.Equal(t, responseError, resp.Type)
	assert.Equal(t, "internal error", resp.Error)
}

func TestSnapshotForParticipant(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	svc := &fakeService{
		comp:     comp,
		question: &quiz.QuestionView{ID: uuid.New(), Number: 1},
		stats:    &quiz.Stats{TotalParticipants: 5},
		history:  []models.Answer{{ID: uuid.New()}},
	}
	h := newTestHandler(svc)

	messages := h.Snapshot(context.Background(), uuid.New(), comp.ID)
	require.Len(t, messages, 4)

	types := make([]string, len(messages))
	for i, m := range messages {
		types[i] = decodeResponse(t, m).Type
	}
	assert.Equal(t, []string{responseCompetition, responseAnswersHistory, responseQuestion, responseStats}, types)
}

func TestSnapshotForSpectatorOmitsHistory(t *testing.T) {
	comp := &models.Competition{ID: uuid.New()}
	svc := &fakeService{comp: comp, stats: &quiz.Stats{}}
	h := newTestHandler(svc)

	messages := h.Snapshot(context.Background(), uuid.Nil, comp.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, responseCompetition, decodeResponse(t, messages[0]).Type)
	assert.Equal(t, responseStats, decodeResponse(t, messages[1]).Type)
}
