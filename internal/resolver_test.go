package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/WelcomerTeam/Sticker-Daemon/telegram"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePack(t *testing.T) {
	source := newFakeSource()
	source.addPack("foo", 3, tgsPath, tgsContent)
	source.sets["foo"].Stickers = append(source.sets["foo"].Stickers, nil)

	pack, err := NewPackResolver(zerolog.Nop(), source).Resolve(context.Background(), " foo ")
	require.NoError(t, err)

	assert.Equal(t, "foo", pack.Name)
	assert.Equal(t, "Pack foo", pack.Title)
	require.Len(t, pack.Stickers, 3)

	for i, sticker := range pack.Stickers {
		assert.Equal(t, source.sets["foo"].Stickers[i].FileID, sticker.ID)
		assert.Empty(t, sticker.Bytes)
	}
}

func TestResolvePackNotFound(t *testing.T) {
	resolver := NewPackResolver(zerolog.Nop(), newFakeSource())

	_, err := resolver.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPackNotFound)
	assert.True(t, IsPackNotFound(err))

	_, err = resolver.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrPackNotFound)
}

func TestFetchAsset(t *testing.T) {
	source := newFakeSource()
	source.addPack("foo", 1, func(int) string { return "stickers/a.webp" }, func(int) []byte {
		return encodeTestPNG(t, 4, 4, red)
	})

	fetcher := NewAssetFetcher(zerolog.Nop(), source)
	asset := &StickerAsset{ID: "foo-file-000"}

	require.NoError(t, fetcher.Fetch(context.Background(), asset))
	assert.Equal(t, "stickers/a.webp", asset.PathHint)
	assert.Equal(t, "image/png", asset.MimeType)
	assert.NotEmpty(t, asset.Bytes)
}

func TestFetchAssetErrors(t *testing.T) {
	source := newFakeSource()
	source.files["empty"] = &telegram.File{FileID: "empty"}

	failure := errors.New("timeout")
	source.failFile("broken", failure)

	fetcher := NewAssetFetcher(zerolog.Nop(), source)

	var fetchErr *FetchError

	err := fetcher.Fetch(context.Background(), &StickerAsset{ID: "broken"})
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "broken", fetchErr.AssetID)
	assert.ErrorIs(t, err, failure)

	err = fetcher.Fetch(context.Background(), &StickerAsset{ID: "empty"})
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, errEmptyFilePath)

	_, err = fetcher.Download(context.Background(), "stickers/missing.webp")
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "stickers/missing.webp", fetchErr.Path)
}

func TestPackNameFromText(t *testing.T) {
	assert.Equal(t, "foo", packNameFromText("foo"))
	assert.Equal(t, "foo", packNameFromText("  foo\n"))
	assert.Equal(t, "foo", packNameFromText("https://t.me/addstickers/foo"))
	assert.Equal(t, "foo", packNameFromText("t.me/addstickers/foo?ref=1"))
	assert.Equal(t, "foo", packNameFromText("foo bar"))
	assert.Equal(t, "", packNameFromText(""))
}
