package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the event bus.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the local development configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBroadcaster publishes event envelopes to NATS subjects. NATS keeps
// per-subject publish order, which together with the single driver
// goroutine per competition gives subscribers per-topic FIFO.
type NATSBroadcaster struct {
	nc *nats.Conn
}

func NewNATSBroadcaster(cfg NATSConfig) (*NATSBroadcaster, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBroadcaster{nc: nc}, nil
}

func (b *NATSBroadcaster) Broadcast(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.nc.Publish(topic, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	log.Debug().
		Str("topic", topic).
		Str("event_type", string(event.Type)).
		Str("event_id", event.ID).
		Msg("event published")
	return nil
}

// Subscribe delivers raw event envelopes for a subject to fn. Used by the
// gateway's consumer.
func (b *NATSBroadcaster) Subscribe(topic string, fn func(Event)) (*nats.Subscription, error) {
	return b.nc.Subscribe(topic, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal event")
			return
		}
		fn(event)
	})
}

func (b *NATSBroadcaster) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
