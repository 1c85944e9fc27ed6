// Package notify bridges Postgres change notifications into the running
// process. The admin API writes competitions and enrollments out of band;
// triggers NOTIFY here, and a periodic full resync covers anything a
// dropped connection missed.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/bus"
)

type Config struct {
	DatabaseURL        string
	CompetitionChannel string
	EnrollmentChannel  string
	FallbackInterval   time.Duration
	PingInterval       time.Duration
}

func DefaultConfig() Config {
	return Config{
		CompetitionChannel: "competition_changed",
		EnrollmentChannel:  "enrollment_created",
		FallbackInterval:   30 * time.Second,
		PingInterval:       90 * time.Second,
	}
}

// Registry is the driver registry surface the listener resyncs.
type Registry interface {
	Resync(ctx context.Context, competitionID uuid.UUID)
	Sync(ctx context.Context) error
}

// Listener LISTENs for competition and enrollment changes, resyncs the
// driver registry and forwards summary events onto the bus.
type Listener struct {
	listener    *pq.Listener
	registry    Registry
	broadcaster bus.Broadcaster
	cfg         Config
}

func NewListener(registry Registry, broadcaster bus.Broadcaster, cfg Config) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	for _, channel := range []string{cfg.CompetitionChannel, cfg.EnrollmentChannel} {
		if err := l.Listen(channel); err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to listen to channel %s: %w", channel, err)
		}
	}

	log.Info().
		Str("competition_channel", cfg.CompetitionChannel).
		Str("enrollment_channel", cfg.EnrollmentChannel).
		Msg("listening for notifications")

	return &Listener{
		listener:    l,
		registry:    registry,
		broadcaster: broadcaster,
		cfg:         cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("change listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// Connection was lost; the fallback resync catches up.
				continue
			}
			l.handleNotification(ctx, note.Channel, note.Extra)
		case <-fallbackTicker.C:
			if err := l.registry.Sync(ctx); err != nil {
				log.Error().Err(err).Msg("fallback resync failed")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification routes one NOTIFY payload. The payload is the
// competition id.
func (l *Listener) handleNotification(ctx context.Context, channel, extra string) {
	competitionID, err := uuid.Parse(extra)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Str("payload", extra).Msg("invalid competition id in notification")
		return
	}

	switch channel {
	case l.cfg.CompetitionChannel:
		l.registry.Resync(ctx, competitionID)
		l.publish(ctx, bus.EventTypeCompetitionUpdated, competitionID)
	case l.cfg.EnrollmentChannel:
		l.publish(ctx, bus.EventTypeEnrollmentIncreased, competitionID)
	default:
		log.Warn().Str("channel", channel).Msg("notification on unexpected channel")
	}
}

// publish puts a summary event on the list topic; the gateway consumer
// fans it out to the competition's own watchers from there.
func (l *Listener) publish(ctx context.Context, eventType bus.EventType, competitionID uuid.UUID) {
	event, err := bus.NewEvent(eventType, competitionID, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to build change event")
		return
	}
	if err := l.broadcaster.Broadcast(ctx, bus.ListTopic, event); err != nil {
		log.Error().Err(err).
			Str("event_type", string(eventType)).
			Str("competition_id", competitionID.String()).
			Msg("failed to broadcast change event")
	}
}
