package internal

import (
	"context"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// Location points at the downloadable file of a sticker.
type Location struct {
	Path     string
	SizeHint int64
}

// AssetFetcher retrieves sticker files from the source platform.
type AssetFetcher struct {
	Logger zerolog.Logger

	source StickerSource
}

func NewAssetFetcher(logger zerolog.Logger, source StickerSource) *AssetFetcher {
	return &AssetFetcher{
		Logger: logger.With().Str("component", "fetcher").Logger(),
		source: source,
	}
}

// ResolveLocation returns where the file of assetID can be downloaded from.
func (af *AssetFetcher) ResolveLocation(ctx context.Context, assetID string) (Location, error) {
	file, err := af.source.GetFile(ctx, assetID)
	if err != nil {
		return Location{}, &FetchError{Err: err, AssetID: assetID}
	}

	if file.FilePath == "" {
		return Location{}, &FetchError{Err: errEmptyFilePath, AssetID: assetID}
	}

	return Location{Path: file.FilePath, SizeHint: file.FileSize}, nil
}

// Download returns the contents of the file at path.
func (af *AssetFetcher) Download(ctx context.Context, path string) ([]byte, error) {
	b, err := af.source.DownloadFile(ctx, path)
	if err != nil {
		return nil, &FetchError{Err: err, Path: path}
	}

	return b, nil
}

// Fetch resolves and downloads asset, filling in its bytes, path and
// detected MIME type.
func (af *AssetFetcher) Fetch(ctx context.Context, asset *StickerAsset) error {
	location, err := af.ResolveLocation(ctx, asset.ID)
	if err != nil {
		return err
	}

	asset.PathHint = location.Path

	b, err := af.source.DownloadFile(ctx, location.Path)
	if err != nil {
		return &FetchError{Err: err, AssetID: asset.ID, Path: location.Path}
	}

	asset.Bytes = b
	asset.MimeType = mimetype.Detect(b).String()

	af.Logger.Trace().
		Str("id", asset.ID).
		Str("path", location.Path).
		Str("mime", asset.MimeType).
		Int("size", len(b)).
		Msg("Fetched sticker")

	return nil
}
