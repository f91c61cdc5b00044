// Package selection tracks the single rectangle a user drags out with the
// primary pointer button.
package selection

import (
	"fmt"

	"sst/src/screenshot"
)

// PrimaryButton is the only button that starts or ends a selection.
const PrimaryButton = 1

type EventKind int

const (
	EventOther EventKind = iota
	EventButtonPress
	EventButtonRelease
	EventMotion
)

func (k EventKind) String() string {
	switch k {
	case EventButtonPress:
		return "button-press"
	case EventButtonRelease:
		return "button-release"
	case EventMotion:
		return "motion"
	default:
		return "other"
	}
}

// Event is one pointer event in root window coordinates.
type Event struct {
	Kind   EventKind
	Button int
	At     screenshot.Point
}

type State int

const (
	Idle State = iota
	Dragging
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Action tells the event loop what to do after an event was handled.
type Action int

const (
	ActionNone Action = iota
	// ActionRedraw asks for the outline to be drawn at Step.Region.
	ActionRedraw
	// ActionCapture finalizes the selection; Step.Region is valid.
	ActionCapture
	// ActionDiscard finalizes a selection too small to capture.
	ActionDiscard
)

type Step struct {
	Action Action
	Region screenshot.Region
}

// Normalize turns two arbitrary corners into a top-left origin and a non-negative extent.
func Normalize(a, b screenshot.Point) screenshot.Region {
	return screenshot.Region{
		X:      min(a.X, b.X),
		Y:      min(a.Y, b.Y),
		Width:  abs(a.X - b.X),
		Height: abs(a.Y - b.Y),
	}
}

// Valid reports whether r is at least one pixel in both axes.
func Valid(r screenshot.Region) bool {
	return r.Width >= 1 && r.Height >= 1
}

// Tracker is the Idle -> Dragging -> Finalized state machine.
// The zero value is an idle tracker.
type Tracker struct {
	state   State
	start   screenshot.Point
	current screenshot.Point
}

func (t *Tracker) State() State { return t.state }

// Start returns the anchor corner; ok is false while idle.
func (t *Tracker) Start() (p screenshot.Point, ok bool) {
	return t.start, t.state != Idle
}

// Current returns the live corner; ok is false while idle.
func (t *Tracker) Current() (p screenshot.Point, ok bool) {
	return t.current, t.state != Idle
}

// Handle advances the state machine. Events that do not apply to the
// current state are ignored and yield ActionNone.
func (t *Tracker) Handle(ev Event) Step {
	switch t.state {
	case Idle:
		if ev.Kind == EventButtonPress && ev.Button == PrimaryButton {
			t.state = Dragging
			t.start = ev.At
			t.current = ev.At
		}
		return Step{}

	case Dragging:
		switch {
		case ev.Kind == EventMotion:
			t.current = ev.At
			return Step{Action: ActionRedraw, Region: Normalize(t.start, t.current)}

		case ev.Kind == EventButtonRelease && ev.Button == PrimaryButton:
			t.current = ev.At
			t.state = Finalized
			region := Normalize(t.start, t.current)
			if !Valid(region) {
				return Step{Action: ActionDiscard, Region: region}
			}
			return Step{Action: ActionCapture, Region: region}
		}
	}
	return Step{}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
