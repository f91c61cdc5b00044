package imagefile

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sst/src/screenshot"
)

func TestPNGEncoderWritesRGB(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	img := &screenshot.RGBImage{
		Pix:    []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 20, 30},
		Width:  2,
		Height: 2,
	}
	require.NoError(t, PNGEncoder{}.Encode(path, img))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Signature (8) + chunk length (4) + "IHDR" (4) + width (4) + height (4) + bit depth (1).
	require.Greater(t, len(data), 26)
	assert.Equal(t, "IHDR", string(data[12:16]))
	assert.Equal(t, byte(8), data[24], "bit depth")
	assert.Equal(t, byte(2), data[25], "colour type should be truecolour without alpha")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, color.RGBAModel.Convert(decoded.At(1, 1)))
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 0, A: 255}, color.RGBAModel.Convert(decoded.At(1, 0)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestPNGEncoderMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.png")
	err := PNGEncoder{}.Encode(path, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
