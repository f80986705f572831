package internal

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/sapphi-red/midec"
	_ "github.com/sapphi-red/midec/gif"  // animated GIF detection
	_ "github.com/sapphi-red/midec/png"  // APNG detection
	_ "github.com/sapphi-red/midec/webp" // animated WebP detection
	_ "golang.org/x/image/webp"
)

// ImageNormalizer converts raster stickers into square, opaque PNG images
// no larger than Size on either side.
type ImageNormalizer struct {
	Logger zerolog.Logger

	Size int
}

func NewImageNormalizer(logger zerolog.Logger, size int) *ImageNormalizer {
	if size < 1 {
		size = DefaultStickerSize
	}

	return &ImageNormalizer{
		Logger: logger.With().Str("component", "normalizer").Logger(),
		Size:   size,
	}
}

// Normalize decodes b and returns it re-encoded as a PNG. The image is
// centered on a square canvas the length of its longest side, flattened
// onto black and downscaled to fit Size. Images are never upscaled.
// Only the first frame of animated images is kept.
func (n *ImageNormalizer) Normalize(b []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, &DecodeError{Err: err, MimeType: mimetype.Detect(b).String()}
	}

	if animated, _ := midec.IsAnimated(bytes.NewReader(b)); animated {
		n.Logger.Warn().Msg("Sticker is animated, only the first frame will be kept")
	}

	squared := squareImage(src)

	out := imaging.Fit(squared, n.Size, n.Size, imaging.Lanczos)

	var buf bytes.Buffer

	if err = imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return buf.Bytes(), nil
}

// squareImage pastes src centered on a transparent square canvas and
// composites the result onto an opaque black background.
func squareImage(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	size := width
	if height > size {
		size = height
	}

	canvas := imaging.New(size, size, color.Transparent)
	canvas = imaging.Paste(canvas, src, image.Pt((size-width)/2, (size-height)/2))

	return imaging.Overlay(imaging.New(size, size, color.Black), canvas, image.Pt(0, 0), 1.0)
}
