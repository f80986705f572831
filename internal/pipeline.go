package internal

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/pkg/accumulator"
	"github.com/WelcomerTeam/Sticker-Daemon/pkg/limiter"
	"github.com/WelcomerTeam/Sticker-Daemon/pkg/lockset"
	"github.com/WelcomerTeam/Sticker-Daemon/telegram"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"
)

const (
	convertedExtension = ".png"

	PermissionsDefault = 0o744
	PermissionWrite    = 0o600
)

// MigrationPipeline fetches and converts every sticker of a pack and packs
// the results into zip archives.
type MigrationPipeline struct {
	Logger zerolog.Logger

	fetcher    *AssetFetcher
	normalizer *ImageNormalizer

	// Throughput counts converted stickers. May be nil.
	Throughput *accumulator.Accumulator

	packLocks lockset.LockSet

	Options PipelineConfiguration
}

type stickerResult struct {
	err   error
	file  ScratchFile
	index int
}

func NewMigrationPipeline(logger zerolog.Logger, fetcher *AssetFetcher, normalizer *ImageNormalizer, options PipelineConfiguration) *MigrationPipeline {
	if options.Workers < 1 {
		options.Workers = DefaultWorkers
	}

	if options.ChunkSize < 1 {
		options.ChunkSize = DefaultChunkSize
	}

	return &MigrationPipeline{
		Logger:     logger.With().Str("component", "pipeline").Logger(),
		fetcher:    fetcher,
		normalizer: normalizer,
		Options:    options,
	}
}

// BuildArchives converts every sticker of pack and returns the paths of the
// written archives in order. Every run writes its archives to its own
// directory under ArchiveDirectory, which is removed with the last archive
// by removeArchives. Any failed sticker aborts the whole run and no archives
// are left behind. Stickers already being processed when a failure happens
// are allowed to finish and their results are discarded.
// Cancelling ctx stops further stickers from being scheduled.
func (mp *MigrationPipeline) BuildArchives(ctx context.Context, pack *StickerPack) (archives []string, err error) {
	if len(pack.Stickers) == 0 {
		return nil, xerrors.Errorf("%s: %w", pack.Name, ErrNoArchives)
	}

	packName := safeFileName(pack.Name)

	// Runs for the same pack convert one at a time.
	mp.packLocks.Lock(packName)
	defer mp.packLocks.Unlock(packName)

	start := time.Now()

	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}

		stickerPipelineDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	scratch, err := os.MkdirTemp(mp.Options.ScratchDirectory, "stickers_*_"+packName)
	if err != nil {
		return nil, xerrors.Errorf("failed to create scratch directory: %w", err)
	}

	defer func() {
		if removeErr := os.RemoveAll(scratch); removeErr != nil {
			mp.Logger.Warn().Err(removeErr).Str("directory", scratch).Msg("Failed to remove scratch directory")
		}
	}()

	files, err := mp.convertStickers(ctx, scratch, packName, pack.Stickers)
	if err != nil {
		return nil, err
	}

	runDirectory, err := mp.createRunDirectory(packName)
	if err != nil {
		return nil, err
	}

	chunks := planArchives(runDirectory, packName, files, mp.Options.ChunkSize)
	archives = make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		if err = writeArchive(chunk); err != nil {
			if removeErr := os.RemoveAll(runDirectory); removeErr != nil {
				mp.Logger.Warn().Err(removeErr).Str("directory", runDirectory).Msg("Failed to remove archive directory")
			}

			return nil, err
		}

		archives = append(archives, chunk.Path)
		stickerArchivesCreated.Inc()
	}

	mp.Logger.Info().
		Str("pack", pack.Name).
		Int("stickers", len(files)).
		Int("archives", len(archives)).
		Dur("duration", time.Since(start)).
		Msg("Built sticker archives")

	return archives, nil
}

// createRunDirectory creates a directory for the archives of one run so
// concurrent runs of the same pack never share archive paths.
func (mp *MigrationPipeline) createRunDirectory(packName string) (string, error) {
	directory := mp.Options.ArchiveDirectory
	if directory == "" {
		directory = "."
	}

	if err := os.MkdirAll(directory, PermissionsDefault); err != nil {
		return "", xerrors.Errorf("failed to create archive directory: %w", err)
	}

	runDirectory, err := os.MkdirTemp(directory, archiveRunPrefix+packName+"_*")
	if err != nil {
		return "", xerrors.Errorf("failed to create archive directory: %w", err)
	}

	return runDirectory, nil
}

// convertStickers runs processSticker for every asset on a bounded pool and
// returns the scratch files in pack order.
func (mp *MigrationPipeline) convertStickers(ctx context.Context, scratch, packName string, assets []*StickerAsset) ([]ScratchFile, error) {
	pool := limiter.NewConcurrencyLimiter("pipeline:"+packName, mp.Options.Workers)
	results := make(chan stickerResult, len(assets))

	var (
		wg          sync.WaitGroup
		failed      atomic.Bool
		scheduleErr error
	)

	for i, asset := range assets {
		if failed.Load() {
			break
		}

		if err := ctx.Err(); err != nil {
			scheduleErr = err

			break
		}

		i, asset := i, asset

		wg.Add(1)

		err := pool.Go(ctx, func(_ int) {
			defer wg.Done()

			result := mp.processSticker(ctx, scratch, packName, i, asset)
			if result.err != nil {
				failed.Store(true)
			}

			results <- result
		})
		if err != nil {
			wg.Done()

			scheduleErr = err

			break
		}
	}

	wg.Wait()
	close(results)

	files := make([]stickerResult, 0, len(assets))

	var firstErr error

	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}

			continue
		}

		files = append(files, result)
	}

	if firstErr != nil {
		mp.Logger.Error().Err(firstErr).Str("pack", packName).Msg("Failed to convert sticker pack")

		return nil, firstErr
	}

	if scheduleErr != nil {
		return nil, xerrors.Errorf("stopped converting stickers: %w", scheduleErr)
	}

	sort.Slice(files, func(a, b int) bool {
		return files[a].index < files[b].index
	})

	scratchFiles := make([]ScratchFile, len(files))
	for i, result := range files {
		scratchFiles[i] = result.file
	}

	return scratchFiles, nil
}

// processSticker fetches a single sticker, converts it unless it is an
// animated vector sticker and writes it to the scratch directory.
func (mp *MigrationPipeline) processSticker(ctx context.Context, scratch, packName string, index int, asset *StickerAsset) (result stickerResult) {
	result.index = index

	defer func() {
		if result.err != nil {
			stickersProcessed.WithLabelValues("failure").Inc()
		} else {
			stickersProcessed.WithLabelValues("success").Inc()

			if mp.Throughput != nil {
				mp.Throughput.Increment()
			}
		}
	}()

	if err := mp.fetcher.Fetch(ctx, asset); err != nil {
		result.err = err

		return result
	}

	data, extension := asset.Bytes, telegram.AnimatedStickerExtension

	if !telegram.IsAnimatedSticker(asset.PathHint) {
		converted, err := mp.normalizer.Normalize(asset.Bytes)
		if err != nil {
			result.err = xerrors.Errorf("sticker %s: %w", asset.ID, err)

			return result
		}

		data, extension = converted, convertedExtension
	}

	// Release the source bytes once written.
	asset.Bytes = nil

	result.file, result.err = writeScratchFile(scratch, packName, extension, data)

	return result
}

// writeScratchFile writes data to a new uniquely named file in directory.
func writeScratchFile(directory, packName, extension string, data []byte) (ScratchFile, error) {
	file, err := os.CreateTemp(directory, packName+"_*"+extension)
	if err != nil {
		return ScratchFile{}, xerrors.Errorf("failed to create scratch file: %w", err)
	}

	n, err := file.Write(data)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return ScratchFile{}, xerrors.Errorf("failed to write scratch file: %w", err)
	}

	return ScratchFile{Path: file.Name(), Size: int64(n)}, nil
}

// safeFileName strips characters that cannot appear in a file name.
func safeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}

		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		return "stickers"
	}

	return name
}
