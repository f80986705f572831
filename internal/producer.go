package internal

import (
	"context"
	"time"

	mqclients "github.com/WelcomerTeam/Sticker-Daemon/messaging"
	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

const defaultProducerChannel = "sticker_migrations"

// Migration event types.
const (
	MigrationEventStarted   = "migration_started"
	MigrationEventCompleted = "migration_completed"
	MigrationEventFailed    = "migration_failed"
)

// MigrationEvent is published to the producer as a migration progresses.
type MigrationEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	JobID     string          `json:"job_id"`
	Pack      string          `json:"pack"`
	Outcome   DeliveryOutcome `json:"outcome,omitempty"`
	Error     string          `json:"error,omitempty"`
	UserID    int64           `json:"user_id"`
	Stickers  int             `json:"stickers,omitempty"`
	Archives  int             `json:"archives,omitempty"`
}

// EventProducer publishes migration events to a message queue. A nil
// *EventProducer drops every event.
type EventProducer struct {
	Logger zerolog.Logger

	client  mqclients.MQClient
	channel string
}

// NewEventProducer connects to the configured message queue. Returns nil
// without an error when no producer type is configured.
func NewEventProducer(ctx context.Context, logger zerolog.Logger, configuration ProducerConfiguration, clientName string) (*EventProducer, error) {
	if configuration.Type == "" {
		return nil, nil
	}

	client, err := mqclients.NewMQClient(configuration.Type)
	if err != nil {
		return nil, xerrors.Errorf("failed to create producer: %w", err)
	}

	if err = client.Connect(ctx, clientName, configuration.Configuration); err != nil {
		return nil, xerrors.Errorf("failed to connect producer: %w", err)
	}

	return newEventProducer(logger, client, configuration.Channel), nil
}

func newEventProducer(logger zerolog.Logger, client mqclients.MQClient, channel string) *EventProducer {
	if channel == "" {
		channel = client.Channel()
	}

	if channel == "" {
		channel = defaultProducerChannel
	}

	return &EventProducer{
		Logger:  logger.With().Str("component", "producer").Str("producer", client.String()).Logger(),
		client:  client,
		channel: channel,
	}
}

// Publish sends an event. Failures are logged, events are informational.
func (ep *EventProducer) Publish(ctx context.Context, event MigrationEvent) {
	if ep == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := stickerjson.Marshal(event)
	if err != nil {
		ep.Logger.Error().Err(err).Msg("Failed to marshal migration event")

		return
	}

	if err = ep.client.Publish(ctx, ep.channel, data); err != nil {
		ep.Logger.Error().Err(err).Str("type", event.Type).Msg("Failed to publish migration event")
	}
}

func (ep *EventProducer) Close() error {
	if ep == nil {
		return nil
	}

	return ep.client.Close()
}
