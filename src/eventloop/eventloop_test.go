package eventloop

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sst/src/imagefile"
	"sst/src/naming"
	"sst/src/screenshot"
	"sst/src/selection"
	"sst/src/session"
)

type fakeDisplay struct {
	events   []selection.Event
	drawn    []screenshot.Region
	cleared  int
	drawErr  error
	eventErr error
	bg       screenshot.Surface

	// cancel is called after cancelAfter events have been delivered.
	cancel      context.CancelFunc
	cancelAfter int
	delivered   int
}

func (d *fakeDisplay) NextEvent(ctx context.Context) (selection.Event, error) {
	if err := ctx.Err(); err != nil {
		return selection.Event{}, err
	}
	if len(d.events) == 0 {
		if d.eventErr != nil {
			return selection.Event{}, d.eventErr
		}
		return selection.Event{}, io.EOF
	}
	ev := d.events[0]
	d.events = d.events[1:]
	d.delivered++
	if d.cancel != nil && d.delivered == d.cancelAfter {
		d.cancel()
	}
	return ev, nil
}

func (d *fakeDisplay) DrawOutline(r screenshot.Region) error {
	d.drawn = append(d.drawn, r)
	return d.drawErr
}

func (d *fakeDisplay) ClearOutline() error {
	d.cleared++
	return nil
}

func (d *fakeDisplay) Background() screenshot.Surface { return d.bg }

func (d *fakeDisplay) Close() error { return nil }

type fakePublisher struct{ paths []string }

func (p *fakePublisher) Publish(_ context.Context, path string) error {
	p.paths = append(p.paths, path)
	return nil
}

func press(x, y, button int) selection.Event {
	return selection.Event{Kind: selection.EventButtonPress, Button: button, At: screenshot.Point{X: x, Y: y}}
}

func release(x, y, button int) selection.Event {
	return selection.Event{Kind: selection.EventButtonRelease, Button: button, At: screenshot.Point{X: x, Y: y}}
}

func motion(x, y int) selection.Event {
	return selection.Event{Kind: selection.EventMotion, At: screenshot.Point{X: x, Y: y}}
}

func newDisplay(events ...selection.Event) *fakeDisplay {
	return &fakeDisplay{
		events: events,
		bg:     screenshot.ImageSurface{Image: image.NewRGBA(image.Rect(0, 0, 640, 480))},
	}
}

func sessionOptions(t *testing.T, pub *fakePublisher) session.Options {
	return session.Options{
		Encoder:   imagefile.PNGEncoder{},
		Publisher: pub,
		Names:     naming.New(t.TempDir()),
	}
}

func savedFiles(t *testing.T, dir string) []os.DirEntry {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestRunCapturesDraggedRegion(t *testing.T) {
	d := newDisplay(press(100, 100, 1), motion(200, 180), motion(300, 250), release(300, 250, 1))
	pub := &fakePublisher{}

	res, err := New(d, sessionOptions(t, pub)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Captured)
	assert.Equal(t, 200, res.Width)
	assert.Equal(t, 150, res.Height)
	assert.Equal(t, []string{res.Path}, pub.paths)
	assert.Equal(t, 1, d.cleared)
	assert.Equal(t, []screenshot.Region{
		{X: 100, Y: 100, Width: 100, Height: 80},
		{X: 100, Y: 100, Width: 200, Height: 150},
	}, d.drawn)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestRunNormalizesReverseDrag(t *testing.T) {
	d := newDisplay(press(300, 250, 1), motion(100, 100), release(100, 100, 1))

	res, err := New(d, sessionOptions(t, &fakePublisher{})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, res.Width)
	assert.Equal(t, 150, res.Height)
}

func TestRunDiscardsClick(t *testing.T) {
	d := newDisplay(press(50, 50, 1), release(50, 50, 1))
	pub := &fakePublisher{}
	opts := sessionOptions(t, pub)
	dir := t.TempDir()
	opts.Names = naming.New(dir)

	l := New(d, opts)
	res, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Captured)
	assert.Empty(t, pub.paths)
	assert.Empty(t, savedFiles(t, dir))
	assert.Equal(t, selection.Finalized, l.State())
}

func TestRunIgnoresOtherButtons(t *testing.T) {
	d := newDisplay(
		press(10, 10, 3),
		release(20, 20, 3),
		press(100, 100, 1),
		press(5, 5, 2),
		release(400, 400, 2),
		release(140, 130, 1),
	)

	res, err := New(d, sessionOptions(t, &fakePublisher{})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 30, res.Height)
}

func TestRunIgnoresRedrawErrors(t *testing.T) {
	d := newDisplay(press(0, 0, 1), motion(10, 10), release(10, 10, 1))
	d.drawErr = errors.New("BadDrawable")

	res, err := New(d, sessionOptions(t, &fakePublisher{})).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Captured)
	assert.Len(t, d.drawn, 1)
}

func TestRunPropagatesEventErrors(t *testing.T) {
	d := newDisplay(press(0, 0, 1))
	d.eventErr = errors.New("connection reset")

	_, err := New(d, sessionOptions(t, &fakePublisher{})).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newDisplay(press(0, 0, 1)), sessionOptions(t, &fakePublisher{})).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFailsOnUnreadableBackground(t *testing.T) {
	d := newDisplay(press(600, 400, 1), release(700, 500, 1))
	pub := &fakePublisher{}

	_, err := New(d, sessionOptions(t, pub)).Run(context.Background())
	require.ErrorIs(t, err, screenshot.ErrSurfaceUnreadable)
	assert.Empty(t, pub.paths)
}

func TestRunObservesCancellationBetweenEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := newDisplay(press(0, 0, 1), motion(10, 10), release(10, 10, 1))
	d.cancel = cancel
	d.cancelAfter = 2
	pub := &fakePublisher{}

	_, err := New(d, sessionOptions(t, pub)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, d.events, 1, "release should not be consumed after cancellation")
	assert.Len(t, d.drawn, 1)
	assert.Empty(t, pub.paths)
}
