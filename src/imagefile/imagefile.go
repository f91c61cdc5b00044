package imagefile

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Encoder writes an image to a file.
type Encoder interface {
	Encode(path string, img image.Image) error
}

// PNGEncoder writes lossless PNG files. Opaque images are stored as RGB
// without an alpha channel.
type PNGEncoder struct {
	CompressionLevel png.CompressionLevel
}

// Encode writes img to a temporary file next to path and renames it into
// place, so a failed encode never leaves a truncated image behind.
func (e PNGEncoder) Encode(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sst-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	enc := png.Encoder{CompressionLevel: e.CompressionLevel}
	if err := enc.Encode(tmp, img); err != nil {
		return fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move image to %s: %w", path, err)
	}
	ok = true
	return nil
}
