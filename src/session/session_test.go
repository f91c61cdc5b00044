package session

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sst/src/imagefile"
	"sst/src/naming"
	"sst/src/screenshot"
)

type fakePublisher struct {
	paths []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type fakeEncoder struct {
	calls int
	err   error
}

func (f *fakeEncoder) Encode(string, image.Image) error {
	f.calls++
	return f.err
}

type brokenSurface struct{}

func (brokenSurface) Raw(screenshot.Region) (*screenshot.RawImage, error) {
	return nil, errors.New("GetImage: BadMatch")
}

func screen(w, h int) screenshot.Surface {
	return screenshot.ImageSurface{Image: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func TestExecuteEndToEnd(t *testing.T) {
	dir := t.TempDir()
	pub := &fakePublisher{}

	res, err := Execute(context.Background(), screenshot.Region{X: 100, Y: 100, Width: 200, Height: 150}, Options{
		Surface:   screen(640, 480),
		Encoder:   imagefile.PNGEncoder{},
		Publisher: pub,
		Names:     naming.New(dir),
	})
	require.NoError(t, err)
	assert.True(t, res.Captured)
	assert.True(t, res.Published)
	assert.Equal(t, dir, filepath.Dir(res.Path))
	assert.Regexp(t, `^sst-[0-9a-f-]{36}\.png$`, filepath.Base(res.Path))
	assert.Equal(t, []string{res.Path}, pub.paths)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestExecuteCreatesSaveDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	res, err := Execute(context.Background(), screenshot.Region{Width: 2, Height: 2}, Options{
		Surface: screen(4, 4),
		Encoder: imagefile.PNGEncoder{},
		Names:   naming.New(dir),
	})
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
	assert.False(t, res.Published)
}

func TestExecutePublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("xclip: exit status 1")}

	res, err := Execute(context.Background(), screenshot.Region{Width: 4, Height: 4}, Options{
		Surface:   screen(10, 10),
		Encoder:   imagefile.PNGEncoder{},
		Publisher: pub,
		Names:     naming.New(t.TempDir()),
	})
	require.NoError(t, err)
	assert.True(t, res.Captured)
	assert.False(t, res.Published)
	assert.FileExists(t, res.Path)
	assert.Len(t, pub.paths, 1)
}

func TestExecuteFailures(t *testing.T) {
	t.Run("unreadable surface", func(t *testing.T) {
		enc := &fakeEncoder{}
		pub := &fakePublisher{}
		_, err := Execute(context.Background(), screenshot.Region{Width: 4, Height: 4}, Options{
			Surface:   brokenSurface{},
			Encoder:   enc,
			Publisher: pub,
			Names:     naming.New(t.TempDir()),
		})
		require.ErrorIs(t, err, screenshot.ErrSurfaceUnreadable)
		assert.Zero(t, enc.calls)
		assert.Empty(t, pub.paths)
	})

	t.Run("encoder error", func(t *testing.T) {
		pub := &fakePublisher{}
		_, err := Execute(context.Background(), screenshot.Region{Width: 4, Height: 4}, Options{
			Surface:   screen(10, 10),
			Encoder:   &fakeEncoder{err: errors.New("disk full")},
			Publisher: pub,
			Names:     naming.New(t.TempDir()),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Empty(t, pub.paths)
	})

	t.Run("missing options", func(t *testing.T) {
		_, err := Execute(context.Background(), screenshot.Region{Width: 4, Height: 4}, Options{})
		assert.Error(t, err)
	})
}
