package screenshot

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ImageSurface serves regions of an in-memory RGBA image.
type ImageSurface struct {
	Image *image.RGBA
}

func (s ImageSurface) Raw(region Region) (*RawImage, error) {
	if s.Image == nil {
		return nil, fmt.Errorf("no image")
	}
	bounds := region.Bounds()
	if bounds.Empty() || !bounds.In(s.Image.Bounds()) {
		return nil, fmt.Errorf("region %s outside image bounds %v", region, s.Image.Bounds())
	}
	offset := s.Image.PixOffset(region.X, region.Y)
	return &RawImage{
		Pix:    s.Image.Pix[offset:],
		Width:  region.Width,
		Height: region.Height,
		Stride: s.Image.Stride,
		Format: FormatRGBA,
	}, nil
}

// ScreenSurface reads the live screen on every call.
type ScreenSurface struct{}

func (ScreenSurface) Raw(region Region) (*RawImage, error) {
	img, err := screenshot.CaptureRect(region.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %v", err)
	}
	return &RawImage{
		Pix:    img.Pix,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Stride: img.Stride,
		Format: FormatRGBA,
	}, nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}

	// Get bounds of the primary display (display 0)
	bounds := screenshot.GetDisplayBounds(0)
	return bounds, nil
}
