package clipboard

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	xclipboard "golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
)

func initNative() error {
	initOnce.Do(func() {
		initErr = xclipboard.Init()
	})
	return initErr
}

// NativePublisher places the PNG bytes on the clipboard in-process.
//
// On X11 the selection is owned by this process, so it disappears on exit.
// Hold keeps the process serving it until another client takes the
// clipboard over, Hold elapses or ctx is done. New sets DefaultNativeHold
// when no hold is configured.
type NativePublisher struct {
	Hold time.Duration
}

func (p *NativePublisher) Publish(ctx context.Context, path string) error {
	if err := initNative(); err != nil {
		return fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	changed := xclipboard.Write(xclipboard.FmtImage, data)
	if p.Hold <= 0 {
		return nil
	}
	log.Debugf("holding clipboard selection for up to %s", p.Hold)
	timer := time.NewTimer(p.Hold)
	defer timer.Stop()
	select {
	case <-changed:
		log.Debugf("clipboard taken over by another client")
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}

// PathPublisher copies the saved file path as plain text.
type PathPublisher struct{}

func (PathPublisher) Publish(_ context.Context, path string) error {
	if err := clipboard.WriteAll(path); err != nil {
		return fmt.Errorf("failed to copy path to clipboard: %w", err)
	}
	return nil
}
