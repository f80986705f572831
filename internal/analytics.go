package internal

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stickersProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_daemon_stickers_processed_total",
			Help: "Stickers fetched and converted",
		},
		[]string{"result"},
	)

	stickerArchivesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sticker_daemon_archives_created_total",
			Help: "Sticker archives written",
		},
	)

	stickerPipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sticker_daemon_pipeline_duration_seconds",
			Help:    "Time taken to build the archives of a pack",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"result"},
	)

	stickerDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_daemon_deliveries_total",
			Help: "Archive deliveries by outcome",
		},
		[]string{"outcome"},
	)

	stickerDeliveryRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sticker_daemon_delivery_retries_total",
			Help: "Messages resent while attachments were being processed",
		},
	)

	stickerUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_daemon_updates_total",
			Help: "Updates received by type",
		},
		[]string{"type"},
	)

	stickerMigrationsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sticker_daemon_migrations_inflight_count",
			Help: "Count of migrations currently being processed",
		},
	)
)

var registerMetricsOnce sync.Once

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(stickersProcessed)
		prometheus.MustRegister(stickerArchivesCreated)
		prometheus.MustRegister(stickerPipelineDuration)
		prometheus.MustRegister(stickerDeliveries)
		prometheus.MustRegister(stickerDeliveryRetries)
		prometheus.MustRegister(stickerUpdates)
		prometheus.MustRegister(stickerMigrationsInflight)
	})
}
