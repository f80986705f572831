package internal

import (
	"context"
	"errors"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/pkg/syncmap"
	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Job stages.
const (
	JobStageResolving  = "resolving"
	JobStageConverting = "converting"
	JobStageDelivering = "delivering"
)

// Job is a migration in progress.
type Job struct {
	StartedAt time.Time      `json:"started_at"`
	Stage     *atomic.String `json:"-"`
	ID        string         `json:"id"`
	Pack      string         `json:"pack"`
	UserID    int64          `json:"user_id"`
}

// MigrationResult is returned by Migrate.
type MigrationResult struct {
	Err      error          `json:"-"`
	Pack     *StickerPack   `json:"pack,omitempty"`
	JobID    string         `json:"job_id"`
	Delivery DeliveryReport `json:"delivery"`
}

// Migrator runs a migration from a pack name to delivered archives. Every
// failure leaves the user exactly one status message.
type Migrator struct {
	Logger zerolog.Logger

	resolver *PackResolver
	pipeline *MigrationPipeline
	delivery *DeliveryManager
	producer *EventProducer

	Jobs     *syncmap.Map[string, *Job]
	Inflight *atomic.Int32
}

func NewMigrator(logger zerolog.Logger, resolver *PackResolver, pipeline *MigrationPipeline, delivery *DeliveryManager, producer *EventProducer) *Migrator {
	return &Migrator{
		Logger:   logger.With().Str("component", "migrator").Logger(),
		resolver: resolver,
		pipeline: pipeline,
		delivery: delivery,
		producer: producer,
		Jobs:     &syncmap.Map[string, *Job]{},
		Inflight: atomic.NewInt32(0),
	}
}

func newJobID() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "job-" + time.Now().UTC().Format("20060102150405.000000000")
	}

	return id
}

// Migrate resolves the pack named in text, converts it and delivers the
// archives to user.
func (m *Migrator) Migrate(ctx context.Context, userID int64, text string) (result MigrationResult) {
	name := packNameFromText(text)

	job := &Job{
		ID:        newJobID(),
		Pack:      name,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		Stage:     atomic.NewString(JobStageResolving),
	}

	result.JobID = job.ID

	m.Jobs.Store(job.ID, job)
	m.Inflight.Inc()
	stickerMigrationsInflight.Inc()

	defer func() {
		m.Jobs.Delete(job.ID)
		m.Inflight.Dec()
		stickerMigrationsInflight.Dec()
	}()

	logger := m.Logger.With().Str("job", job.ID).Str("pack", name).Int64("user_id", userID).Logger()

	pack, err := m.resolver.Resolve(ctx, name)
	if err != nil {
		logger.Info().Err(err).Msg("Sticker pack not found")

		m.delivery.Notify(ctx, userID, formatPackMessage(MessageSetNotFound, name), tamtam.TextFormatMarkdown)

		result.Err = err

		return result
	}

	result.Pack = pack

	m.producer.Publish(ctx, MigrationEvent{
		Type:     MigrationEventStarted,
		JobID:    job.ID,
		Pack:     pack.Name,
		UserID:   userID,
		Stickers: len(pack.Stickers),
	})

	m.delivery.Notify(ctx, userID, formatPackMessage(MessageSetInProgress, name), "")

	job.Stage.Store(JobStageConverting)

	archives, err := m.pipeline.BuildArchives(ctx, pack)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build sticker archives")

		m.delivery.Notify(ctx, userID, MessageError, "")
		m.publishFailed(ctx, job, pack, err, "")

		result.Err = err

		return result
	}

	job.Stage.Store(JobStageDelivering)

	result.Delivery = m.delivery.Deliver(ctx, userID, archives)
	result.Err = result.Delivery.Err

	if result.Delivery.Outcome != DeliveryOutcomeDelivered {
		logger.Warn().
			Err(result.Delivery.Err).
			Str("outcome", string(result.Delivery.Outcome)).
			Int("uploaded", result.Delivery.Uploaded).
			Int("sent", result.Delivery.Sent).
			Msg("Sticker archives were not delivered")

		m.publishFailed(ctx, job, pack, result.Delivery.Err, result.Delivery.Outcome)

		return result
	}

	logger.Info().
		Int("stickers", len(pack.Stickers)).
		Int("archives", len(archives)).
		Dur("duration", time.Since(job.StartedAt)).
		Msg("Migrated sticker pack")

	m.producer.Publish(ctx, MigrationEvent{
		Type:     MigrationEventCompleted,
		JobID:    job.ID,
		Pack:     pack.Name,
		UserID:   userID,
		Stickers: len(pack.Stickers),
		Archives: len(archives),
		Outcome:  result.Delivery.Outcome,
	})

	return result
}

func (m *Migrator) publishFailed(ctx context.Context, job *Job, pack *StickerPack, err error, outcome DeliveryOutcome) {
	event := MigrationEvent{
		Type:     MigrationEventFailed,
		JobID:    job.ID,
		Pack:     pack.Name,
		UserID:   job.UserID,
		Stickers: len(pack.Stickers),
		Outcome:  outcome,
	}

	if err != nil {
		event.Error = err.Error()
	}

	m.producer.Publish(ctx, event)
}

// IsPackNotFound reports whether err came from a failed pack lookup.
func IsPackNotFound(err error) bool {
	return errors.Is(err, ErrPackNotFound)
}
