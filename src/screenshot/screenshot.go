package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

var (
	// ErrInvalidRegion is returned for regions smaller than one pixel in either axis.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrSurfaceUnreadable is returned when the pixel source cannot be read.
	ErrSurfaceUnreadable = errors.New("could not read pixel surface")
)

// Region represents a screen region to capture
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

type Point struct {
	X int
	Y int
}

// Bounds returns the region as an image.Rectangle.
func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// PixelFormat describes how one pixel is laid out in a source buffer.
// R, G and B are byte offsets inside a pixel; any other bytes are padding or alpha.
type PixelFormat struct {
	BytesPerPixel int
	R, G, B       int
}

var (
	// FormatBGRX is the common 32bpp little-endian layout of X servers.
	FormatBGRX = PixelFormat{BytesPerPixel: 4, R: 2, G: 1, B: 0}
	// FormatRGBA is the layout of image.RGBA.
	FormatRGBA = PixelFormat{BytesPerPixel: 4, R: 0, G: 1, B: 2}
)

func (f PixelFormat) Validate() error {
	if f.BytesPerPixel < 3 {
		return fmt.Errorf("unsupported pixel format: %d bytes per pixel", f.BytesPerPixel)
	}
	for _, off := range []int{f.R, f.G, f.B} {
		if off < 0 || off >= f.BytesPerPixel {
			return fmt.Errorf("channel offset %d outside %d-byte pixel", off, f.BytesPerPixel)
		}
	}
	return nil
}

// RawImage is a region of a surface in the surface's native pixel format.
type RawImage struct {
	Pix    []byte
	Width  int
	Height int
	// Stride is the distance in bytes between the starts of two rows.
	Stride int
	Format PixelFormat
}

// Surface is a pixel source a region can be read from.
type Surface interface {
	Raw(region Region) (*RawImage, error)
}

// RGBImage is a packed row-major buffer of R,G,B triples without row padding.
type RGBImage struct {
	Pix    []byte
	Width  int
	Height int
}

func (m *RGBImage) Stride() int { return m.Width * 3 }

func (m *RGBImage) ColorModel() color.Model { return color.RGBAModel }

func (m *RGBImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *RGBImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(m.Bounds())) {
		return color.RGBA{}
	}
	i := y*m.Stride() + x*3
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff}
}

// Opaque reports true so encoders write the image without an alpha channel.
func (m *RGBImage) Opaque() bool { return true }

// CaptureRegion reads region from src and converts it to packed RGB.
func CaptureRegion(src Surface, region Region) (*RGBImage, error) {
	if region.Width < 1 || region.Height < 1 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidRegion, region.Width, region.Height)
	}

	raw, err := src.Raw(region)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnreadable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: no image returned for %s", ErrSurfaceUnreadable, region)
	}

	return Extract(raw)
}

// Extract reorders every source pixel into R,G,B and drops padding and alpha bytes.
func Extract(raw *RawImage) (*RGBImage, error) {
	if err := raw.Format.Validate(); err != nil {
		return nil, err
	}
	if raw.Width < 1 || raw.Height < 1 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidRegion, raw.Width, raw.Height)
	}
	bpp := raw.Format.BytesPerPixel
	rowBytes := raw.Width * bpp
	if raw.Stride < rowBytes {
		return nil, fmt.Errorf("row stride %d shorter than %d pixels of %d bytes", raw.Stride, raw.Width, bpp)
	}
	if need := raw.Stride*(raw.Height-1) + rowBytes; len(raw.Pix) < need {
		return nil, fmt.Errorf("pixel buffer holds %d bytes, need %d", len(raw.Pix), need)
	}

	out := &RGBImage{
		Pix:    make([]byte, raw.Width*raw.Height*3),
		Width:  raw.Width,
		Height: raw.Height,
	}
	r, g, b := raw.Format.R, raw.Format.G, raw.Format.B
	dst := 0
	for y := 0; y < raw.Height; y++ {
		row := raw.Pix[y*raw.Stride : y*raw.Stride+rowBytes]
		for src := 0; src < rowBytes; src += bpp {
			out.Pix[dst] = row[src+r]
			out.Pix[dst+1] = row[src+g]
			out.Pix[dst+2] = row[src+b]
			dst += 3
		}
	}
	return out, nil
}
