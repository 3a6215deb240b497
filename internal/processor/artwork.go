package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // WebP format support (YouTube Music serves webp thumbnails)
)

const defaultMinSize = 64

// ArtworkProcessor checks that downloaded album art is a decodable image
// large enough to display
type ArtworkProcessor struct {
	logger  *zap.Logger
	minSize int
}

// NewArtworkProcessor creates a processor rejecting art below minSize pixels on either side
func NewArtworkProcessor(logger *zap.Logger, minSize int) *ArtworkProcessor {
	if minSize <= 0 {
		minSize = defaultMinSize
	}
	return &ArtworkProcessor{
		logger:  logger,
		minSize: minSize,
	}
}

// Process decodes the image and reports its dimensions
func (p *ArtworkProcessor) Process(ctx context.Context, imageData []byte) (domain.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageInfo{}, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return domain.ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}

	// Full decode catches truncated bodies that still carry a valid header
	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		return domain.ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	info := domain.ImageInfo{Width: bounds.Dx(), Height: bounds.Dy(), Format: format}
	if info.Width < p.minSize || info.Height < p.minSize {
		return info, fmt.Errorf("image too small: %dx%d (min %d)", info.Width, info.Height, p.minSize)
	}

	p.logger.Debug("Artwork validated",
		zap.Int("w", info.Width),
		zap.Int("h", info.Height),
		zap.String("format", format))
	return info, nil
}
