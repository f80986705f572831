package main

import (
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/internal"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configurationLocation := flag.String("config", "stickers.yaml", "Path of the configuration file")
	loggingLevel := flag.String("level", "", "Logging level, overrides the configuration file")
	envFile := flag.String("env", ".env", "Optional file to load environment variables from")

	flag.Parse()

	// Only a missing file is allowed.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		println("Failed to load env file:", err.Error())
		os.Exit(1)
	}

	tokens, err := internal.LoadTokens(os.Getenv)
	if err != nil {
		println("env var " + err.Error())
		os.Exit(1)
	}

	configuration, err := internal.LoadConfiguration(*configurationLocation)
	if err != nil {
		println("Failed to load configuration:", err.Error())
		os.Exit(1)
	}

	if *loggingLevel != "" {
		configuration.Logging.Level = *loggingLevel
	}

	logger, closer := newLogger(configuration.Logging)
	defer closer.Close()

	daemon, err := internal.NewDaemon(logger, configuration, tokens)
	if err != nil {
		logger.Panic().Err(err).Msg("Cannot create daemon")
	}

	if err = daemon.Open(); err != nil {
		logger.Panic().Err(err).Msg("Cannot open daemon")
	}

	// Wait for signal to close.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-signalCh

	if err = daemon.Close(); err != nil {
		logger.Warn().Err(err).Msg("Exception whilst closing daemon")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger writes to the console and, when enabled, a rotating log file.
func newLogger(configuration internal.LoggingConfiguration) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(configuration.Level)
	if err != nil || configuration.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	var console io.Writer = os.Stdout
	if !configuration.EncodeAsJSON {
		console = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Stamp,
		}
	}

	writers := []io.Writer{console}

	var closer io.Closer = nopCloser{}

	if configuration.FileLoggingEnabled {
		if configuration.Directory != "" {
			if err := os.MkdirAll(configuration.Directory, internal.PermissionsDefault); err != nil {
				println("Failed to create log directory:", err.Error())
			}
		}

		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(configuration.Directory, configuration.Filename),
			MaxBackups: configuration.MaxBackups,
			MaxSize:    configuration.MaxSize,
			MaxAge:     configuration.MaxAge,
			Compress:   configuration.Compress,
		}

		writers = append(writers, rotating)
		closer = rotating
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	return logger, closer
}
