package internal

import (
	"context"
	"strings"

	"github.com/WelcomerTeam/Sticker-Daemon/telegram"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// StickerSource is the part of the source platform API used by the resolver
// and fetcher. *telegram.Session implements it.
type StickerSource interface {
	GetStickerSet(ctx context.Context, name string) (*telegram.StickerSet, error)
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}

// StickerAsset is a single sticker of a pack. Bytes is empty until fetched.
type StickerAsset struct {
	ID       string `json:"id"`
	Emoji    string `json:"emoji"`
	PathHint string `json:"path_hint"`
	MimeType string `json:"mime_type"`
	Bytes    []byte `json:"-"`
}

// StickerPack is a named sticker collection in source order.
type StickerPack struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Stickers []*StickerAsset `json:"stickers"`
}

// PackResolver looks up sticker packs by name.
type PackResolver struct {
	Logger zerolog.Logger

	source StickerSource
}

func NewPackResolver(logger zerolog.Logger, source StickerSource) *PackResolver {
	return &PackResolver{
		Logger: logger.With().Str("component", "resolver").Logger(),
		source: source,
	}
}

// Resolve returns the pack with the given name. Any failure, including
// transport errors, is reported as ErrPackNotFound.
func (pr *PackResolver) Resolve(ctx context.Context, name string) (*StickerPack, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPackNotFound
	}

	set, err := pr.source.GetStickerSet(ctx, name)
	if err != nil {
		pr.Logger.Debug().Err(err).Str("pack", name).Msg("Sticker pack lookup failed")

		return nil, xerrors.Errorf("%s: %w", name, ErrPackNotFound)
	}

	pack := &StickerPack{
		Name:     set.Name,
		Title:    set.Title,
		Stickers: make([]*StickerAsset, 0, len(set.Stickers)),
	}

	if pack.Name == "" {
		pack.Name = name
	}

	for _, sticker := range set.Stickers {
		if sticker == nil {
			continue
		}

		pack.Stickers = append(pack.Stickers, &StickerAsset{
			ID:    sticker.FileID,
			Emoji: sticker.Emoji,
		})
	}

	return pack, nil
}
