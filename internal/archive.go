package internal

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/xerrors"
)

const (
	archiveExtension = ".zip"

	// archiveRunPrefix names the per-run directories archives are written to.
	archiveRunPrefix = "archives_"
)

// ScratchFile is a converted sticker written to a pipeline's scratch directory.
type ScratchFile struct {
	Path string
	Size int64
}

// ArchiveChunk is one zip archive holding at most ChunkSize stickers.
type ArchiveChunk struct {
	Path    string
	Entries []ScratchFile
	Index   int
}

// ArchiveName returns the file name of the archive at index for a pack.
func ArchiveName(packName string, index int) string {
	return packName + "_" + strconv.Itoa(index) + archiveExtension
}

// chunkFiles splits files into consecutive chunks of at most size entries.
func chunkFiles(files []ScratchFile, size int) [][]ScratchFile {
	if size < 1 {
		size = DefaultChunkSize
	}

	chunks := make([][]ScratchFile, 0, (len(files)+size-1)/size)

	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}

		chunks = append(chunks, files[start:end])
	}

	return chunks
}

// planArchives lays out the archives for a pack inside directory.
func planArchives(directory, packName string, files []ScratchFile, size int) []ArchiveChunk {
	chunks := chunkFiles(files, size)
	archives := make([]ArchiveChunk, len(chunks))

	for i, chunk := range chunks {
		archives[i] = ArchiveChunk{
			Index:   i,
			Path:    filepath.Join(directory, ArchiveName(packName, i)),
			Entries: chunk,
		}
	}

	return archives
}

// writeArchive writes every entry of chunk into a new zip file at chunk.Path.
// Entries are stored under their base name.
func writeArchive(chunk ArchiveChunk) (err error) {
	file, err := os.OpenFile(chunk.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, PermissionWrite)
	if err != nil {
		return xerrors.Errorf("failed to create archive: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = xerrors.Errorf("failed to close archive: %w", closeErr)
		}

		if err != nil {
			_ = os.Remove(chunk.Path)
		}
	}()

	writer := zip.NewWriter(file)

	for _, entry := range chunk.Entries {
		if err = addArchiveEntry(writer, entry.Path); err != nil {
			return err
		}
	}

	if err = writer.Close(); err != nil {
		return xerrors.Errorf("failed to finish archive: %w", err)
	}

	return nil
}

func addArchiveEntry(writer *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return xerrors.Errorf("failed to open scratch file: %w", err)
	}
	defer src.Close()

	dst, err := writer.Create(filepath.Base(path))
	if err != nil {
		return xerrors.Errorf("failed to create archive entry: %w", err)
	}

	if _, err = io.Copy(dst, src); err != nil {
		return xerrors.Errorf("failed to write archive entry: %w", err)
	}

	return nil
}

// removeFiles removes every path, ignoring files that are already gone.
func removeFiles(paths []string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

// removeArchives removes every archive and then the run directories that
// held them once they are empty.
func removeArchives(paths []string) {
	removeFiles(paths)

	seen := make(map[string]bool, 1)

	for _, path := range paths {
		directory := filepath.Dir(path)
		if seen[directory] || !strings.HasPrefix(filepath.Base(directory), archiveRunPrefix) {
			continue
		}

		seen[directory] = true

		// Fails while other files are still inside.
		_ = os.Remove(directory)
	}
}
