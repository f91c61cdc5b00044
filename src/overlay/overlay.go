package overlay

import (
	"context"
	"errors"

	"sst/src/config"
	"sst/src/screenshot"
	"sst/src/selection"
)

// ErrSetup marks failures to prepare the display: connecting, grabbing the
// pointer, creating graphics contexts, allocating the outline colour.
var ErrSetup = errors.New("display setup failed")

// Display is the interactive surface the selection happens on.
// It is owned by a single goroutine; none of the methods are safe for concurrent use.
type Display interface {
	// NextEvent blocks until the next pointer event arrives. Implementations
	// may only check ctx between events.
	NextEvent(ctx context.Context) (selection.Event, error)
	// DrawOutline restores the background and draws the selection border.
	DrawOutline(region screenshot.Region) error
	// ClearOutline restores the background without a border.
	ClearOutline() error
	// Background is the screen snapshot taken before the overlay appeared.
	Background() screenshot.Surface
	Close() error
}

type Options struct {
	// Display is the X display name; empty means $DISPLAY.
	Display      string
	LineWidth    int
	OutlineColor config.RGB
}
