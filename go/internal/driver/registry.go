package driver

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/quiz"
)

// Lister enumerates the competitions that should have a live driver.
type Lister interface {
	ListActive(ctx context.Context) ([]*models.Competition, error)
	GetCompetition(ctx context.Context, id uuid.UUID) (*models.Competition, error)
}

// Factory builds a driver for one competition.
type Factory func(competitionID uuid.UUID) *Driver

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the set of running drivers, one per active competition.
// Change notifications resync individual entries; startup seeds the whole
// set from storage. Every driver derives its position from the wall clock,
// so starting one late is always safe.
type Registry struct {
	competitions Lister
	factory      Factory

	mu      sync.Mutex
	running map[uuid.UUID]*handle
	closed  bool
}

func NewRegistry(competitions Lister, factory Factory) *Registry {
	return &Registry{
		competitions: competitions,
		factory:      factory,
		running:      make(map[uuid.UUID]*handle),
	}
}

// Sync reconciles the running set against active competitions in storage.
// Called once at startup and again whenever a bulk change is suspected.
func (r *Registry) Sync(ctx context.Context) error {
	comps, err := r.competitions.ListActive(ctx)
	if err != nil {
		return err
	}
	active := make(map[uuid.UUID]bool, len(comps))
	for _, comp := range comps {
		active[comp.ID] = true
		r.Start(ctx, comp.ID)
	}

	r.mu.Lock()
	var stale []uuid.UUID
	for id := range r.running {
		if !active[id] {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.Cancel(id)
	}
	return nil
}

// Start launches a driver for the competition unless one is already
// running. The driver goroutine removes itself from the registry on exit.
func (r *Registry) Start(ctx context.Context, competitionID uuid.UUID) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, ok := r.running[competitionID]; ok {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	r.running[competitionID] = h
	r.mu.Unlock()

	d := r.factory(competitionID)
	go func() {
		defer close(h.done)
		defer r.remove(competitionID)
		if err := d.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("competition_id", competitionID.String()).Msg("driver exited with error")
		}
	}()
}

// Cancel stops the competition's driver and waits for it to exit.
func (r *Registry) Cancel(competitionID uuid.UUID) {
	r.mu.Lock()
	h, ok := r.running[competitionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	h.cancel()
	<-h.done
}

// Resync reacts to a change notification for one competition: a now
// missing or inactive competition loses its driver, an active one gains
// one if it is not already running.
func (r *Registry) Resync(ctx context.Context, competitionID uuid.UUID) {
	comp, err := r.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		if errors.Is(err, quiz.ErrNotFound) {
			r.Cancel(competitionID)
			return
		}
		log.Error().Err(err).Str("competition_id", competitionID.String()).Msg("failed to resync competition")
		return
	}
	if !comp.IsActive {
		r.Cancel(competitionID)
		return
	}
	r.Start(ctx, comp.ID)
}

// Running reports whether the competition currently has a driver.
func (r *Registry) Running(competitionID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[competitionID]
	return ok
}

// Shutdown cancels every driver and waits for all of them to exit. The
// registry accepts no new drivers afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	handles := make([]*handle, 0, len(r.running))
	for _, h := range r.running {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}

func (r *Registry) remove(competitionID uuid.UUID) {
	r.mu.Lock()
	delete(r.running, competitionID)
	r.mu.Unlock()
}
