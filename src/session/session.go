package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"sst/src/clipboard"
	"sst/src/imagefile"
	"sst/src/screenshot"
)

// Namer hands out the output path of the next capture.
type Namer interface {
	Next() string
}

type Options struct {
	Surface   screenshot.Surface
	Encoder   imagefile.Encoder
	Publisher clipboard.Publisher
	Names     Namer
}

type Result struct {
	Path   string
	Width  int
	Height int
	// Captured is false when nothing was written.
	Captured bool
	// Published is false when the clipboard hand-off failed or was skipped.
	Published bool
}

func (o Options) validate() error {
	switch {
	case o.Surface == nil:
		return errors.New("Surface is required")
	case o.Encoder == nil:
		return errors.New("Encoder is required")
	case o.Names == nil:
		return errors.New("Names is required")
	}
	return nil
}

// Execute captures region from the surface, writes it to the next output
// path and publishes the file to the clipboard. Capture and encode failures
// are returned; a failed clipboard hand-off is only logged because the
// file has already been saved.
func Execute(ctx context.Context, region screenshot.Region, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}

	img, err := screenshot.CaptureRegion(opts.Surface, region)
	if err != nil {
		return Result{}, err
	}
	log.Debugf("captured %s (%d bytes)", region, len(img.Pix))

	path := opts.Names.Next()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create save directory: %w", err)
	}
	if err := opts.Encoder.Encode(path, img); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Infof("saved %dx%d capture to %s", img.Width, img.Height, path)

	res := Result{
		Path:     path,
		Width:    img.Width,
		Height:   img.Height,
		Captured: true,
	}

	if opts.Publisher == nil {
		return res, nil
	}
	if err := opts.Publisher.Publish(ctx, path); err != nil {
		log.Warnf("Could not copy image to clipboard: %v", err)
		return res, nil
	}
	res.Published = true
	return res, nil
}
