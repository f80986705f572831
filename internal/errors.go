package internal

import (
	"golang.org/x/xerrors"
)

// ErrPackNotFound is returned when a sticker pack lookup does not succeed.
// Transport failures are reported the same way as a missing pack.
var ErrPackNotFound = xerrors.New("Sticker pack not found")

var (
	ErrMissingTelegramToken = xerrors.New("TELEGRAM_BOT_TOKEN must be set")
	ErrMissingTamTamToken   = xerrors.New("TAMTAM_BOT_TOKEN must be set")
)

var (
	ErrReadConfigurationFailure        = xerrors.New("Failed to read configuration")
	ErrLoadConfigurationFailure        = xerrors.New("Failed to load configuration")
	ErrConfigurationValidateHTTP       = xerrors.New("Configuration missing valid HTTP Host")
	ErrConfigurationValidatePrometheus = xerrors.New("Configuration missing valid Prometheus Host")
	ErrConfigurationValidatePipeline   = xerrors.New("Configuration has invalid pipeline options")
	ErrConfigurationValidateDelivery   = xerrors.New("Configuration has invalid delivery options")
	ErrConfigurationValidateDedupe     = xerrors.New("Configuration has unknown dedupe type")
)

var (
	ErrProducerMissing = xerrors.New("No producer client found")
	ErrNoArchives      = xerrors.New("No archives to deliver")

	errEmptyFilePath = xerrors.New("file has no download path")
)

// FetchError is returned when a sticker location or its bytes could not be
// retrieved from the source platform.
type FetchError struct {
	Err     error
	AssetID string
	Path    string
}

func (e *FetchError) Error() string {
	if e.Path != "" {
		return "failed to fetch sticker " + e.AssetID + " (" + e.Path + "): " + e.Err.Error()
	}

	return "failed to fetch sticker " + e.AssetID + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a sticker is not a decodable raster image.
type DecodeError struct {
	Err      error
	MimeType string
}

func (e *DecodeError) Error() string {
	if e.MimeType != "" {
		return "failed to decode image (" + e.MimeType + "): " + e.Err.Error()
	}

	return "failed to decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
