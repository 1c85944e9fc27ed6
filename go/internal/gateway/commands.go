package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/quiz"
)

// QuizService is the read/submit surface the gateway commands run
// against. *quiz.Service satisfies this.
type QuizService interface {
	GetCompetition(ctx context.Context, id uuid.UUID) (*models.Competition, error)
	CurrentQuestion(ctx context.Context, competitionID uuid.UUID, now time.Time) (*quiz.QuestionView, error)
	QuestionByNumber(ctx context.Context, comp *models.Competition, number int, now time.Time) (*quiz.QuestionView, error)
	GetStats(ctx context.Context, competitionID uuid.UUID, now time.Time) (*quiz.Stats, error)
	SubmitAnswer(ctx context.Context, userID, competitionID, questionID, choiceID uuid.UUID, now time.Time) (*quiz.AnswerResult, error)
	AnswerHistory(ctx context.Context, userID, competitionID uuid.UUID, now time.Time) ([]models.Answer, error)
	UseHint(ctx context.Context, userID, competitionID, questionID uuid.UUID) (*quiz.HintResult, error)
	IsEligible(ctx context.Context, userID, competitionID uuid.UUID, now time.Time) (bool, error)
}

// Command is the client-to-server message envelope.
type Command struct {
	Command string          `json:"command" validate:"required,oneof=PING GET_COMPETITION GET_CURRENT_QUESTION GET_STATS GET_QUESTION GET_HINT ANSWER"`
	Args    json.RawMessage `json:"args,omitempty"`
}

type getQuestionArgs struct {
	Index int `json:"index" validate:"required,min=1"`
}

type getHintArgs struct {
	QuestionID uuid.UUID `json:"questionId" validate:"required"`
}

type answerArgs struct {
	QuestionID       uuid.UUID `json:"questionId" validate:"required"`
	SelectedChoiceID uuid.UUID `json:"selectedChoiceId" validate:"required"`
}

// Response is the server-to-client message for command replies and the
// on-connect snapshot. Broadcast events use the bus envelope instead.
type Response struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const (
	responsePong           = "PONG"
	responseCompetition    = "competition"
	responseQuestion       = "question"
	responseStats          = "stats"
	responseAnswerResult   = "answer_result"
	responseHint           = "hint"
	responseAnswersHistory = "answers_history"
	responseError          = "error"
)

// CommandHandler dispatches client commands against the quiz service.
type CommandHandler struct {
	service  QuizService
	validate *validator.Validate
	clock    clockwork.Clock
}

func NewCommandHandler(service QuizService, clock clockwork.Clock) *CommandHandler {
	return &CommandHandler{
		service:  service,
		validate: validator.New(),
		clock:    clock,
	}
}

// Handle runs one raw client message and returns the marshalled reply, or
// nil when the command produces no reply.
func (h *CommandHandler) Handle(ctx context.Context, userID, competitionID uuid.UUID, raw []byte) []byte {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return marshalResponse(errorResponse("malformed command"))
	}
	if err := h.validate.Struct(cmd); err != nil {
		return marshalResponse(errorResponse("unknown command"))
	}

	resp := h.dispatch(ctx, userID, competitionID, cmd)
	if resp == nil {
		return nil
	}
	return marshalResponse(*resp)
}

func (h *CommandHandler) dispatch(ctx context.Context, userID, competitionID uuid.UUID, cmd Command) *Response {
	now := h.clock.Now()

	switch cmd.Command {
	case "PING":
		return &Response{Type: responsePong}

	case "GET_COMPETITION":
		comp, err := h.service.GetCompetition(ctx, competitionID)
		if err != nil {
			return h.serviceError(err, "competition")
		}
		return payloadResponse(responseCompetition, comp)

	case "GET_CURRENT_QUESTION":
		view, err := h.service.CurrentQuestion(ctx, competitionID, now)
		if err != nil {
			return h.serviceError(err, "current question")
		}
		return payloadResponse(responseQuestion, view)

	case "GET_STATS":
		stats, err := h.service.GetStats(ctx, competitionID, now)
		if err != nil {
			return h.serviceError(err, "stats")
		}
		return payloadResponse(responseStats, stats)

	case "GET_QUESTION":
		var args getQuestionArgs
		if resp := h.parseArgs(cmd.Args, &args); resp != nil {
			return resp
		}
		comp, err := h.service.GetCompetition(ctx, competitionID)
		if err != nil {
			return h.serviceError(err, "competition")
		}
		view, err := h.service.QuestionByNumber(ctx, comp, args.Index, now)
		if err != nil {
			return h.serviceError(err, "question")
		}
		return payloadResponse(responseQuestion, view)

	case "GET_HINT":
		var args getHintArgs
		if resp := h.parseArgs(cmd.Args, &args); resp != nil {
			return resp
		}
		hint, err := h.service.UseHint(ctx, userID, competitionID, args.QuestionID)
		if err != nil {
			return h.serviceError(err, "hint")
		}
		return payloadResponse(responseHint, hint)

	case "ANSWER":
		var args answerArgs
		if resp := h.parseArgs(cmd.Args, &args); resp != nil {
			return resp
		}
		eligible, err := h.service.IsEligible(ctx, userID, competitionID, now)
		if err != nil {
			return h.serviceError(err, "eligibility")
		}
		if !eligible {
			// Eliminated or late participants get no reply; the client
			// learns its fate from the stats broadcasts.
			log.Debug().
				Str("user_id", userID.String()).
				Str("competition_id", competitionID.String()).
				Msg("ineligible answer dropped")
			return nil
		}
		result, err := h.service.SubmitAnswer(ctx, userID, competitionID, args.QuestionID, args.SelectedChoiceID, now)
		if err != nil {
			if errors.Is(err, quiz.ErrConflict) {
				return errorResponsePtr("question already answered")
			}
			if errors.Is(err, quiz.ErrIneligible) {
				return nil
			}
			return h.serviceError(err, "answer")
		}
		return payloadResponse(responseAnswerResult, result)
	}
	return errorResponsePtr("unknown command")
}

// Snapshot builds the on-connect catch-up messages for a quiz connection:
// the competition, the participant's answer slate, the live question if
// one is visible, and current stats.
func (h *CommandHandler) Snapshot(ctx context.Context, userID, competitionID uuid.UUID) [][]byte {
	now := h.clock.Now()
	var out [][]byte

	comp, err := h.service.GetCompetition(ctx, competitionID)
	if err != nil {
		log.Error().Err(err).Str("competition_id", competitionID.String()).Msg("snapshot: failed to load competition")
		return nil
	}
	out = appendResponse(out, payloadResponse(responseCompetition, comp))

	if userID != uuid.Nil {
		history, err := h.service.AnswerHistory(ctx, userID, competitionID, now)
		if err == nil {
			out = appendResponse(out, payloadResponse(responseAnswersHistory, history))
		} else if !errors.Is(err, quiz.ErrNotFound) {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("snapshot: failed to load answer history")
		}
	}

	if view, err := h.service.CurrentQuestion(ctx, competitionID, now); err == nil {
		out = appendResponse(out, payloadResponse(responseQuestion, view))
	}
	if stats, err := h.service.GetStats(ctx, competitionID, now); err == nil {
		out = appendResponse(out, payloadResponse(responseStats, stats))
	}
	return out
}

func (h *CommandHandler) parseArgs(raw json.RawMessage, dst any) *Response {
	if len(raw) == 0 {
		return errorResponsePtr("missing args")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errorResponsePtr("malformed args")
	}
	if err := h.validate.Struct(dst); err != nil {
		return errorResponsePtr("invalid args")
	}
	return nil
}

func (h *CommandHandler) serviceError(err error, what string) *Response {
	if errors.Is(err, quiz.ErrNotFound) {
		return errorResponsePtr(what + " not found")
	}
	log.Error().Err(err).Str("subject", what).Msg("command failed")
	return errorResponsePtr("internal error")
}

func payloadResponse(responseType string, payload any) *Response {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", responseType).Msg("failed to marshal response payload")
		return errorResponsePtr("internal error")
	}
	return &Response{Type: responseType, Payload: data}
}

func errorResponse(msg string) Response {
	return Response{Type: responseError, Error: msg}
}

func errorResponsePtr(msg string) *Response {
	r := errorResponse(msg)
	return &r
}

func marshalResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		return nil
	}
	return data
}

func appendResponse(out [][]byte, resp *Response) [][]byte {
	if resp == nil {
		return out
	}
	if data := marshalResponse(*resp); data != nil {
		out = append(out, data)
	}
	return out
}
