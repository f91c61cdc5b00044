package eventloop

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"sst/src/overlay"
	"sst/src/selection"
	"sst/src/session"
)

// Loop drives one interactive selection on a display and hands the
// finished region to a capture session.
type Loop struct {
	display overlay.Display
	tracker selection.Tracker
	opts    session.Options
}

// New creates a loop over display. The session surface is always the
// display's background snapshot; opts.Surface is ignored.
func New(display overlay.Display, opts session.Options) *Loop {
	return &Loop{display: display, opts: opts}
}

// State reports where the selection currently stands.
func (l *Loop) State() selection.State { return l.tracker.State() }

// Run processes pointer events until the selection is finalized or the
// display reports an error. ctx is handed to NextEvent and the session; the
// X11 display only observes cancellation between events, not while it waits
// for one. A degenerate selection ends the loop with a zero Result and no
// error.
func (l *Loop) Run(ctx context.Context) (session.Result, error) {
	for {
		ev, err := l.display.NextEvent(ctx)
		if err != nil {
			return session.Result{}, fmt.Errorf("failed to read display event: %w", err)
		}

		step := l.tracker.Handle(ev)
		switch step.Action {
		case selection.ActionRedraw:
			if err := l.display.DrawOutline(step.Region); err != nil {
				log.Debugf("eventloop: redraw %s: %v", step.Region, err)
			}
		case selection.ActionDiscard:
			log.Debugf("eventloop: discarding degenerate selection %s", step.Region)
			return session.Result{}, nil
		case selection.ActionCapture:
			return l.capture(ctx, step)
		}
	}
}

func (l *Loop) capture(ctx context.Context, step selection.Step) (session.Result, error) {
	// The outline lives on the overlay, not in the snapshot, so clearing
	// it only matters for what the user sees while the file is written.
	if err := l.display.ClearOutline(); err != nil {
		log.Debugf("eventloop: clear outline: %v", err)
	}

	opts := l.opts
	opts.Surface = l.display.Background()
	return session.Execute(ctx, step.Region, opts)
}
