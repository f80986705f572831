package telegram

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

// AnimatedStickerExtension is the file extension of Lottie based animated
// stickers. These cannot be decoded as raster images.
const AnimatedStickerExtension = ".tgs"

type apiResponse struct {
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int32           `json:"error_code"`
	OK          bool            `json:"ok"`
}

// StickerSet represents a sticker set.
type StickerSet struct {
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	StickerType string     `json:"sticker_type"`
	Stickers    []*Sticker `json:"stickers"`
}

// Sticker represents a sticker object.
type Sticker struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Emoji        string `json:"emoji"`
	SetName      string `json:"set_name"`
	Width        int32  `json:"width"`
	Height       int32  `json:"height"`
	FileSize     int64  `json:"file_size"`
	IsAnimated   bool   `json:"is_animated"`
	IsVideo      bool   `json:"is_video"`
}

// File represents a file ready to be downloaded.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FilePath     string `json:"file_path"` // stickers/file_81.webp
	FileSize     int64  `json:"file_size"`
}

// IsAnimatedSticker reports if the file path points to an animated vector sticker.
func IsAnimatedSticker(filePath string) bool {
	return strings.HasSuffix(strings.ToLower(filePath), AnimatedStickerExtension)
}

// GetStickerSet returns a sticker set by its name.
func (s *Session) GetStickerSet(ctx context.Context, name string) (*StickerSet, error) {
	var set StickerSet

	err := s.FetchResult(ctx, "getStickerSet", url.Values{"name": {name}}, &set)
	if err != nil {
		return nil, err
	}

	return &set, nil
}

// GetFile returns basic information about a file and its download path.
func (s *Session) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File

	err := s.FetchResult(ctx, "getFile", url.Values{"file_id": {fileID}}, &file)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

// DownloadFile downloads the contents of a file previously resolved with GetFile.
func (s *Session) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	return s.Fetch(ctx, s.fileURL(filePath))
}
