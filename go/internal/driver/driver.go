// Package driver runs one goroutine per live competition. The driver
// sleeps to absolute schedule boundaries and recomputes its position from
// the wall clock on every wake, so restarts and timer drift self-correct
// instead of accumulating.
package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/bus"
	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/quiz"
	"github.com/witslabs/quizwall/go/internal/schedule"
)

// State is the driver's lifecycle position, exposed for observability.
type State string

const (
	StateIdle         State = "IDLE"
	StateBroadcasting State = "BROADCASTING"
	StateFinished     State = "FINISHED"
)

// CompetitionStore is what the driver needs from competition storage.
type CompetitionStore interface {
	GetCompetition(ctx context.Context, id uuid.UUID) (*models.Competition, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Views supplies the client-facing payloads the driver broadcasts.
// *quiz.Service satisfies this.
type Views interface {
	QuestionByNumber(ctx context.Context, comp *models.Competition, number int, now time.Time) (*quiz.QuestionView, error)
	GetStats(ctx context.Context, competitionID uuid.UUID, now time.Time) (*quiz.Stats, error)
}

// FinishWinner is one entry of the finish event payload.
type FinishWinner struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash"`
}

// FinishPayload closes out a competition on the wire.
type FinishPayload struct {
	Winners []FinishWinner `json:"winners"`
}

// Driver plays one competition's schedule to its bus topic.
type Driver struct {
	competitionID uuid.UUID
	windows       schedule.Windows
	competitions  CompetitionStore
	views         Views
	settler       *Settler
	broadcaster   bus.Broadcaster
	clock         clockwork.Clock

	mu    sync.Mutex
	state State
}

func New(
	competitionID uuid.UUID,
	windows schedule.Windows,
	competitions CompetitionStore,
	views Views,
	settler *Settler,
	broadcaster bus.Broadcaster,
	clock clockwork.Clock,
) *Driver {
	return &Driver{
		competitionID: competitionID,
		windows:       windows,
		competitions:  competitions,
		views:         views,
		settler:       settler,
		broadcaster:   broadcaster,
		clock:         clock,
		state:         StateIdle,
	}
}

// State returns the driver's current lifecycle position.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Run plays the competition from wherever the wall clock says it is and
// returns after settlement or cancellation. A driver started mid-schedule
// resumes at the next boundary; one started after the schedule ended goes
// straight to settlement.
func (d *Driver) Run(ctx context.Context) error {
	comp, err := d.competitions.GetCompetition(ctx, d.competitionID)
	if err != nil {
		if errors.Is(err, quiz.ErrNotFound) {
			log.Warn().Str("competition_id", d.competitionID.String()).Msg("competition missing; driver stopping")
			return nil
		}
		return err
	}
	if !comp.IsActive {
		log.Info().Str("competition_id", comp.ID.String()).Msg("competition inactive; driver stopping")
		return nil
	}

	log.Info().
		Str("competition_id", comp.ID.String()).
		Time("start_at", comp.StartAt).
		Int("question_count", comp.QuestionCount).
		Msg("driver started")

	if !d.windows.IsStarted(comp.StartAt, d.clock.Now()) {
		if err := d.sleepUntil(ctx, comp.StartAt); err != nil {
			return err
		}
	}
	d.setState(StateBroadcasting)

	// A schedule that already ran out has nothing left to broadcast;
	// settle without replaying the final round's events.
	if d.windows.IsFinished(comp.StartAt, comp.QuestionCount, d.clock.Now()) {
		log.Info().Str("competition_id", comp.ID.String()).Msg("schedule already over; settling")
		return d.finish(ctx, comp)
	}

	first := d.windows.CurrentQuestionNumber(comp.StartAt, comp.QuestionCount, d.clock.Now())
	if first < 1 {
		first = 1
	}

	for number := first; number <= comp.QuestionCount; number++ {
		if err := d.sleepUntil(ctx, d.windows.QuestionRevealAt(comp.StartAt, number)); err != nil {
			return err
		}

		// Re-read each round so deactivation or deletion mid-run is
		// noticed at the next boundary.
		comp, err = d.competitions.GetCompetition(ctx, d.competitionID)
		if err != nil {
			if errors.Is(err, quiz.ErrNotFound) {
				log.Warn().Str("competition_id", d.competitionID.String()).Msg("competition disappeared mid-run; driver stopping")
				return nil
			}
			return err
		}
		if !comp.IsActive {
			log.Info().Str("competition_id", comp.ID.String()).Msg("competition deactivated mid-run; driver stopping")
			return nil
		}

		d.broadcastQuestion(ctx, comp, number)

		if err := d.sleepUntil(ctx, d.windows.StatsAt(comp.StartAt, number)); err != nil {
			return err
		}
		d.broadcastStats(ctx, comp)
	}

	// The finish boundary is the end of the last question's rest window.
	if err := d.sleepUntil(ctx, d.windows.QuestionRevealAt(comp.StartAt, comp.QuestionCount+1)); err != nil {
		return err
	}
	return d.finish(ctx, comp)
}

func (d *Driver) broadcastQuestion(ctx context.Context, comp *models.Competition, number int) {
	view, err := d.views.QuestionByNumber(ctx, comp, number, d.clock.Now())
	if err != nil {
		// A gap in the question sequence skips one reveal, not the
		// whole competition.
		log.Error().Err(err).
			Str("competition_id", comp.ID.String()).
			Int("question_number", number).
			Msg("failed to load question for reveal")
		return
	}
	event, err := bus.NewEvent(bus.EventTypeNewQuestion, comp.ID, view)
	if err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to build new_question event")
		return
	}
	if err := d.broadcaster.Broadcast(ctx, bus.CompetitionTopic(comp.ID), event); err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to broadcast new_question")
	}
}

func (d *Driver) broadcastStats(ctx context.Context, comp *models.Competition) {
	stats, err := d.views.GetStats(ctx, comp.ID, d.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to load stats")
		return
	}
	event, err := bus.NewEvent(bus.EventTypeStatsUpdate, comp.ID, stats)
	if err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to build stats_update event")
		return
	}
	if err := d.broadcaster.Broadcast(ctx, bus.CompetitionTopic(comp.ID), event); err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to broadcast stats_update")
	}
}

func (d *Driver) finish(ctx context.Context, comp *models.Competition) error {
	settlement, err := d.settler.Settle(ctx, comp)
	if err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("settlement failed")
		return err
	}

	payload := FinishPayload{Winners: make([]FinishWinner, len(settlement.Winners))}
	for i, w := range settlement.Winners {
		payload.Winners[i] = FinishWinner{Address: w.WalletAddress, TxHash: settlement.TxHash}
	}
	event, err := bus.NewEvent(bus.EventTypeFinish, comp.ID, payload)
	if err != nil {
		return err
	}
	if err := d.broadcaster.Broadcast(ctx, bus.CompetitionTopic(comp.ID), event); err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to broadcast finish")
	}

	// Retire the competition so a process restart does not replay it. An
	// unsubmitted payout keeps it active instead; the next registry sync
	// starts a fresh driver that lands here again and retries settlement.
	if settlement.TxHash == "" {
		log.Warn().Str("competition_id", comp.ID.String()).Msg("payout outstanding; competition left active")
	} else if err := d.competitions.Deactivate(ctx, comp.ID); err != nil {
		log.Error().Err(err).Str("competition_id", comp.ID.String()).Msg("failed to deactivate competition")
	}

	d.setState(StateFinished)
	log.Info().
		Str("competition_id", comp.ID.String()).
		Int("winners", len(settlement.Winners)).
		Str("tx_hash", settlement.TxHash).
		Msg("competition finished")
	return nil
}

// sleepUntil blocks until the wall clock reaches t. Boundaries already in
// the past return immediately, which is what lets a restarted driver catch
// up to the live position without replaying old rounds.
func (d *Driver) sleepUntil(ctx context.Context, t time.Time) error {
	wait := t.Sub(d.clock.Now())
	if wait <= 0 {
		return ctx.Err()
	}
	timer := d.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
