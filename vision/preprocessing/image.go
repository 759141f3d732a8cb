package preprocessing

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// ImageProcessor decodes scan images and converts them to network input.
type ImageProcessor struct {
	targetSize int
}

// NewImageProcessor creates a processor that resizes images to
// targetSize x targetSize.
func NewImageProcessor(targetSize int) *ImageProcessor {
	return &ImageProcessor{targetSize: targetSize}
}

// ProcessedImage represents a preprocessed image ready for neural network input
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// DecodeAndPreprocess decodes a JPEG or PNG image, resizes it with nearest
// neighbour sampling, and returns CHW float32 data normalized to [0, 1].
func (p *ImageProcessor) DecodeAndPreprocess(reader io.Reader) (*ProcessedImage, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty image: %dx%d", width, height)
	}

	size := p.targetSize
	plane := size * size
	data := make([]float32, 3*plane)

	scaleX := float64(width) / float64(size)
	scaleY := float64(height) / float64(size)

	for y := 0; y < size; y++ {
		srcY := bounds.Min.Y + int(float64(y)*scaleY)
		if srcY >= bounds.Max.Y {
			srcY = bounds.Max.Y - 1
		}
		for x := 0; x < size; x++ {
			srcX := bounds.Min.X + int(float64(x)*scaleX)
			if srcX >= bounds.Max.X {
				srcX = bounds.Max.X - 1
			}

			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := y*size + x
			data[0*plane+idx] = float32(r) / 65535.0
			data[1*plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}

	return &ProcessedImage{
		Data:     data,
		Width:    size,
		Height:   size,
		Channels: 3,
	}, nil
}
