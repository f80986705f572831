package internal

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	TelegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	TamTamTokenEnv   = "TAMTAM_BOT_TOKEN"
)

const (
	DefaultWorkers        = 10
	DefaultChunkSize      = 50
	DefaultStickerSize    = 512
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = 1 * time.Second
	DefaultDelayIncrement = 1 * time.Second
	DefaultDedupeTTL      = 10 * time.Minute
)

// Configuration represents the configuration file.
type Configuration struct {
	HTTP       HTTPConfiguration       `json:"http" yaml:"http"`
	Prometheus PrometheusConfiguration `json:"prometheus" yaml:"prometheus"`

	Telegram TelegramConfiguration `json:"telegram" yaml:"telegram"`
	TamTam   TamTamConfiguration   `json:"tamtam" yaml:"tamtam"`

	Pipeline PipelineConfiguration `json:"pipeline" yaml:"pipeline"`
	Delivery DeliveryConfiguration `json:"delivery" yaml:"delivery"`

	Dedupe   DedupeConfiguration   `json:"dedupe" yaml:"dedupe"`
	Producer ProducerConfiguration `json:"producer" yaml:"producer"`

	Logging LoggingConfiguration `json:"logging" yaml:"logging"`
}

type HTTPConfiguration struct {
	Host        string `json:"host" yaml:"host"`
	WebhookPath string `json:"webhook_path" yaml:"webhook_path"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

type PrometheusConfiguration struct {
	Host string `json:"host" yaml:"host"`
}

type TelegramConfiguration struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type TamTamConfiguration struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// WebhookURL is registered with POST /subscriptions on startup when set.
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`

	// Polling receives updates with GET /updates instead of a webhook.
	Polling     bool          `json:"polling" yaml:"polling"`
	PollTimeout time.Duration `json:"poll_timeout" yaml:"poll_timeout"`
	PollLimit   int           `json:"poll_limit" yaml:"poll_limit"`
}

type PipelineConfiguration struct {
	Workers     int `json:"workers" yaml:"workers"`
	ChunkSize   int `json:"chunk_size" yaml:"chunk_size"`
	StickerSize int `json:"sticker_size" yaml:"sticker_size"`

	// Empty uses the system temporary directory.
	ScratchDirectory string `json:"scratch_directory" yaml:"scratch_directory"`
	// Empty uses the working directory.
	ArchiveDirectory string `json:"archive_directory" yaml:"archive_directory"`
}

type DeliveryConfiguration struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay      time.Duration `json:"base_delay" yaml:"base_delay"`
	DelayIncrement time.Duration `json:"delay_increment" yaml:"delay_increment"`
}

type DedupeConfiguration struct {
	// Type is one of memory, redis or none.
	Type string        `json:"type" yaml:"type"`
	TTL  time.Duration `json:"ttl" yaml:"ttl"`

	Redis struct {
		Address  string `json:"address" yaml:"address"`
		Password string `json:"password" yaml:"password"`
		DB       int    `json:"db" yaml:"db"`
	} `json:"redis" yaml:"redis"`
}

type ProducerConfiguration struct {
	Configuration map[string]interface{} `json:"configuration" yaml:"configuration"`
	// Empty disables migration events.
	Type    string `json:"type" yaml:"type"`
	Channel string `json:"channel" yaml:"channel"`
}

type LoggingConfiguration struct {
	Level string `json:"level" yaml:"level"`

	FileLoggingEnabled bool   `json:"file_logging_enabled" yaml:"file_logging_enabled"`
	Directory          string `json:"directory" yaml:"directory"`
	Filename           string `json:"filename" yaml:"filename"`
	MaxSize            int    `json:"max_size" yaml:"max_size"`
	MaxBackups         int    `json:"max_backups" yaml:"max_backups"`
	MaxAge             int    `json:"max_age" yaml:"max_age"`
	Compress           bool   `json:"compress" yaml:"compress"`

	EncodeAsJSON bool `json:"encode_as_json" yaml:"encode_as_json"`
}

// Tokens holds the bot credentials. These are only read from the environment.
type Tokens struct {
	Telegram string
	TamTam   string
}

// DefaultConfiguration returns the configuration used when no file is present.
func DefaultConfiguration() Configuration {
	return Configuration{
		HTTP: HTTPConfiguration{
			Host:        ":19999",
			WebhookPath: "/",
			Enabled:     true,
		},
		Prometheus: PrometheusConfiguration{
			Host: ":10000",
		},
		Telegram: TelegramConfiguration{
			Timeout: 20 * time.Second,
		},
		TamTam: TamTamConfiguration{
			Timeout:     30 * time.Second,
			PollTimeout: 20 * time.Second,
			PollLimit:   100,
		},
		Pipeline: PipelineConfiguration{
			Workers:     DefaultWorkers,
			ChunkSize:   DefaultChunkSize,
			StickerSize: DefaultStickerSize,
		},
		Delivery: DeliveryConfiguration{
			MaxAttempts:    DefaultMaxAttempts,
			BaseDelay:      DefaultBaseDelay,
			DelayIncrement: DefaultDelayIncrement,
		},
		Dedupe: DedupeConfiguration{
			Type: DedupeTypeMemory,
			TTL:  DefaultDedupeTTL,
		},
		Logging: LoggingConfiguration{
			Level:      "info",
			Filename:   "sticker-daemon.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// LoadConfiguration reads the configuration file at path over the defaults.
// A missing file is not an error.
func LoadConfiguration(path string) (configuration Configuration, err error) {
	configuration = DefaultConfiguration()

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return configuration, nil
		}

		return configuration, xerrors.Errorf("%v: %w", err, ErrReadConfigurationFailure)
	}

	err = yaml.Unmarshal(file, &configuration)
	if err != nil {
		return configuration, xerrors.Errorf("%v: %w", err, ErrLoadConfigurationFailure)
	}

	return configuration, configuration.Validate()
}

// Validate checks the configuration is usable.
func (c *Configuration) Validate() error {
	if c.HTTP.Enabled && !c.TamTam.Polling && c.HTTP.Host == "" {
		return ErrConfigurationValidateHTTP
	}

	if c.HTTP.WebhookPath == "" {
		c.HTTP.WebhookPath = "/"
	}

	if c.Pipeline.Workers < 1 || c.Pipeline.ChunkSize < 1 || c.Pipeline.StickerSize < 1 {
		return ErrConfigurationValidatePipeline
	}

	if c.Delivery.MaxAttempts < 1 || c.Delivery.BaseDelay < 0 || c.Delivery.DelayIncrement < 0 {
		return ErrConfigurationValidateDelivery
	}

	switch strings.ToLower(c.Dedupe.Type) {
	case DedupeTypeMemory, DedupeTypeRedis, DedupeTypeNone, "":
	default:
		return ErrConfigurationValidateDedupe
	}

	return nil
}

// LoadTokens reads the bot tokens with getenv. Both are required.
func LoadTokens(getenv func(string) string) (tokens Tokens, err error) {
	tokens.Telegram = strings.TrimSpace(getenv(TelegramTokenEnv))
	if tokens.Telegram == "" {
		return tokens, ErrMissingTelegramToken
	}

	tokens.TamTam = strings.TrimSpace(getenv(TamTamTokenEnv))
	if tokens.TamTam == "" {
		return tokens, ErrMissingTamTamToken
	}

	return tokens, nil
}
