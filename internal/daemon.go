package internal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/pkg/accumulator"
	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	"github.com/WelcomerTeam/Sticker-Daemon/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"
)

// VERSION follows semantic versioning.
const VERSION = "1.0.0"

const (
	prometheusGatherInterval = 10 * time.Second
	dedupeEjectorInterval    = 1 * time.Minute

	// 60 samples of 1 minute gives an hour of throughput history.
	throughputSamples  = 60
	throughputInterval = 1 * time.Minute
)

var handledUpdateTypes = []tamtam.UpdateType{
	tamtam.UpdateTypeBotStarted,
	tamtam.UpdateTypeMessageCreated,
}

// Daemon receives updates from the destination platform and runs sticker
// migrations for them.
type Daemon struct {
	Logger zerolog.Logger `json:"-"`

	StartTime time.Time `json:"start_time"`

	ctx    context.Context
	cancel func()

	Telegram *telegram.Session `json:"-"`
	TamTam   *tamtam.Session   `json:"-"`

	Resolver   *PackResolver      `json:"-"`
	Fetcher    *AssetFetcher      `json:"-"`
	Normalizer *ImageNormalizer   `json:"-"`
	Pipeline   *MigrationPipeline `json:"-"`
	Delivery   *DeliveryManager   `json:"-"`
	Migrator   *Migrator          `json:"-"`

	Dedupe   Deduplicator   `json:"-"`
	Producer *EventProducer `json:"-"`

	Throughput *accumulator.Accumulator `json:"-"`

	UpdatesInflight *atomic.Int32 `json:"-"`

	RouterHandler fasthttp.RequestHandler `json:"-"`

	httpServer       *fasthttp.Server
	prometheusServer *http.Server

	Configuration Configuration `json:"configuration"`

	// Tracks update handlers and background loops.
	wg sync.WaitGroup
}

// NewDaemon creates the daemon and connects its dedupe store and producer.
func NewDaemon(logger zerolog.Logger, configuration Configuration, tokens Tokens) (d *Daemon, err error) {
	telegramSession, err := telegram.NewSession(configuration.Telegram.BaseURL, tokens.Telegram, configuration.Telegram.Timeout)
	if err != nil {
		return nil, xerrors.Errorf("failed to create telegram session: %w", err)
	}

	tamtamSession, err := tamtam.NewSession(configuration.TamTam.BaseURL, tokens.TamTam, configuration.TamTam.Timeout)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tamtam session: %w", err)
	}

	d = newDaemon(logger, configuration, telegramSession, tamtamSession)
	d.Telegram = telegramSession
	d.TamTam = tamtamSession

	d.Dedupe, err = NewDeduplicator(d.ctx, configuration.Dedupe)
	if err != nil {
		d.cancel()

		return nil, xerrors.Errorf("failed to create deduplicator: %w", err)
	}

	d.Producer, err = NewEventProducer(d.ctx, d.Logger, configuration.Producer, "sticker-daemon")
	if err != nil {
		d.cancel()
		_ = d.Dedupe.Close()

		return nil, err
	}

	d.Migrator.producer = d.Producer

	return d, nil
}

// newDaemon wires every component on top of source and messenger.
func newDaemon(logger zerolog.Logger, configuration Configuration, source StickerSource, messenger Messenger) *Daemon {
	d := &Daemon{
		Logger:          logger,
		Configuration:   configuration,
		Dedupe:          NewMemoryDeduplicator(DefaultDedupeTTL),
		Throughput:      accumulator.NewAccumulator("stickers", throughputSamples, throughputInterval),
		UpdatesInflight: atomic.NewInt32(0),
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.Resolver = NewPackResolver(logger, source)
	d.Fetcher = NewAssetFetcher(logger, source)
	d.Normalizer = NewImageNormalizer(logger, configuration.Pipeline.StickerSize)
	d.Pipeline = NewMigrationPipeline(logger, d.Fetcher, d.Normalizer, configuration.Pipeline)
	d.Pipeline.Throughput = d.Throughput
	d.Delivery = NewDeliveryManager(logger, messenger, configuration.Delivery)
	d.Migrator = NewMigrator(logger, d.Resolver, d.Pipeline, d.Delivery, nil)

	d.RouterHandler = d.NewRestRouter()

	return d
}

// Open starts the update intake and the metric servers.
func (d *Daemon) Open() error {
	d.StartTime = time.Now().UTC()
	d.Logger.Info().Msgf("Starting sticker daemon. Version %s", VERSION)

	if d.TamTam != nil {
		me, err := d.TamTam.GetMe(d.ctx)
		if err != nil {
			return xerrors.Errorf("failed to verify tamtam token: %w", err)
		}

		d.Logger.Info().Str("name", me.Name).Int64("user_id", me.UserID).Msg("Authenticated with TamTam")
	}

	if d.Configuration.Prometheus.Host != "" {
		d.setupPrometheus()
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		d.Throughput.Run(d.ctx)
	}()

	if dedupe, ok := d.Dedupe.(*MemoryDeduplicator); ok {
		d.wg.Add(1)

		go d.dedupeEjector(dedupe)
	}

	if d.Configuration.TamTam.Polling {
		d.wg.Add(1)

		go d.pollUpdates()

		return nil
	}

	if d.Configuration.TamTam.WebhookURL != "" && d.TamTam != nil {
		err := d.TamTam.Subscribe(d.ctx, d.Configuration.TamTam.WebhookURL, handledUpdateTypes)
		if err != nil {
			return xerrors.Errorf("failed to subscribe webhook: %w", err)
		}

		d.Logger.Info().Str("url", d.Configuration.TamTam.WebhookURL).Msg("Subscribed webhook")
	}

	if d.Configuration.HTTP.Enabled {
		d.setupHTTP()
	}

	return nil
}

// Close stops the intake, waits for running migrations and closes clients.
func (d *Daemon) Close() error {
	d.Logger.Info().Msg("Closing sticker daemon")

	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to shutdown http server")
		}
	}

	if d.prometheusServer != nil {
		_ = d.prometheusServer.Close()
	}

	if d.cancel != nil {
		d.cancel()
	}

	d.wg.Wait()

	if err := d.Producer.Close(); err != nil {
		d.Logger.Warn().Err(err).Msg("Failed to close producer")
	}

	if d.Dedupe != nil {
		if err := d.Dedupe.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close deduplicator")
		}
	}

	return nil
}

func (d *Daemon) setupPrometheus() {
	registerMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{},
	))

	d.prometheusServer = &http.Server{
		Addr:              d.Configuration.Prometheus.Host,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go d.prometheusGatherer()

	go func() {
		d.Logger.Info().Msgf("Serving prometheus at %s", d.Configuration.Prometheus.Host)

		err := d.prometheusServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error().Str("host", d.Configuration.Prometheus.Host).Err(err).Msg("Failed to serve prometheus server")
		}
	}()
}

func (d *Daemon) setupHTTP() {
	d.httpServer = &fasthttp.Server{
		Handler: d.HandleRequest,
		Name:    "sticker-daemon",
	}

	go func() {
		d.Logger.Info().Msgf("Serving http at %s", d.Configuration.HTTP.Host)

		err := d.httpServer.ListenAndServe(d.Configuration.HTTP.Host)
		if err != nil {
			d.Logger.Error().Str("host", d.Configuration.HTTP.Host).Err(err).Msg("Failed to serve http server")
		}
	}()
}

func (d *Daemon) prometheusGatherer() {
	t := time.NewTicker(prometheusGatherInterval)
	defer t.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-t.C:
		}

		d.Logger.Debug().
			Int32("migrationsInflight", d.Migrator.Inflight.Load()).
			Int32("updatesInflight", d.UpdatesInflight.Load()).
			Int64("stickersPending", d.Throughput.Pending()).
			Msg("Gathered metrics")
	}
}

func (d *Daemon) dedupeEjector(dedupe *MemoryDeduplicator) {
	defer d.wg.Done()

	t := time.NewTicker(dedupeEjectorInterval)
	defer t.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-t.C:
			if ejected := dedupe.Eject(now); ejected > 0 {
				d.Logger.Debug().
					Int("ejectedDedupes", ejected).
					Int("dedupesTotal", dedupe.Len()).
					Msg("Ejected dedupes")
			}
		}
	}
}
