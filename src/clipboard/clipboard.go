package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	BackendCommand = "command"
	BackendNative  = "native"
	BackendPath    = "path"
	BackendNone    = "none"
)

const pipeWaitDelay = 500 * time.Millisecond

// DefaultNativeHold is how long the native backend serves the image when
// no hold is configured.
const DefaultNativeHold = 30 * time.Second

// DefaultCommand hands a PNG file to the X clipboard selection.
var DefaultCommand = []string{"xclip", "-selection", "clipboard", "-t", "image/png"}

// Publisher makes a saved image available on the system clipboard.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

// New returns the publisher for backend. command is only used by BackendCommand
// and hold only by BackendNative, where a non-positive hold means
// DefaultNativeHold.
func New(backend string, command []string, hold time.Duration) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendCommand:
		if len(command) == 0 {
			command = DefaultCommand
		}
		return CommandPublisher{Command: command}, nil
	case BackendNative:
		if hold <= 0 {
			hold = DefaultNativeHold
		}
		return &NativePublisher{Hold: hold}, nil
	case BackendPath:
		return PathPublisher{}, nil
	case BackendNone:
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", backend)
	}
}

// CommandPublisher runs an external tool with the file path as last argument.
type CommandPublisher struct {
	Command []string
}

func (p CommandPublisher) Publish(ctx context.Context, path string) error {
	if len(p.Command) == 0 {
		return errors.New("no clipboard command configured")
	}
	args := append(append([]string{}, p.Command[1:]...), path)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)

	// xclip forks a child that keeps serving the selection and inherits
	// stderr, so the pipe may stay open after the parent has exited.
	var out bytes.Buffer
	cmd.Stderr = &out
	cmd.WaitDelay = pipeWaitDelay
	if err := cmd.Run(); err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", p.Command[0], err, msg)
		}
		return fmt.Errorf("%s: %w", p.Command[0], err)
	}
	return nil
}

// NopPublisher leaves the clipboard untouched.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string) error { return nil }
