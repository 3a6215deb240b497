package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

func TestArtworkProcessor_Process(t *testing.T) {
	tests := []struct {
		name          string
		imageData     []byte
		minSize       int
		expectedError string
		expected      domain.ImageInfo
	}{
		{
			name:      "Success - JPEG 544x544",
			imageData: createTestJPEG(544, 544, color.RGBA{R: 255, A: 255}),
			expected:  domain.ImageInfo{Width: 544, Height: 544, Format: "jpeg"},
		},
		{
			name:      "Success - PNG 120x90",
			imageData: createTestPNG(120, 90, color.RGBA{G: 255, A: 255}),
			minSize:   90,
			expected:  domain.ImageInfo{Width: 120, Height: 90, Format: "png"},
		},
		{
			name:          "Error - Below Minimum",
			imageData:     createTestJPEG(60, 60, color.RGBA{B: 255, A: 255}),
			expectedError: "image too small: 60x60",
		},
		{
			name:          "Error - One Side Below Minimum",
			imageData:     createTestPNG(200, 40, color.RGBA{B: 255, A: 255}),
			expectedError: "image too small: 200x40",
		},
		{
			name:          "Error - Invalid Image Data",
			imageData:     []byte("not-an-image"),
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Empty Data",
			imageData:     []byte{},
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Corrupted JPEG",
			imageData:     []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00}, // Partial JPEG header
			expectedError: "failed to decode image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewArtworkProcessor(zap.NewNop(), tt.minSize)
			info, err := processor.Process(context.Background(), tt.imageData)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, info)
			}
		})
	}
}

func TestArtworkProcessor_Process_ContextCancellation(t *testing.T) {
	processor := NewArtworkProcessor(zap.NewNop(), 0)
	imageData := createTestJPEG(100, 100, color.RGBA{R: 255, A: 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := processor.Process(ctx, imageData); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// createTestJPEG generates a solid JPEG image for testing
func createTestJPEG(width, height int, col color.Color) []byte {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, solid(width, height, col), &jpeg.Options{Quality: 80}); err != nil {
		panic("failed to create test JPEG: " + err.Error())
	}
	return buf.Bytes()
}

func createTestPNG(width, height int, col color.Color) []byte {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, solid(width, height, col)); err != nil {
		panic("failed to create test PNG: " + err.Error())
	}
	return buf.Bytes()
}

func solid(width, height int, col color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, col)
		}
	}
	return img
}
