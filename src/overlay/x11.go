package overlay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"sst/src/config"
	"sst/src/screenshot"
	"sst/src/selection"
)

const allPlanes = 0xffffffff

// X11 is a fullscreen override-redirect overlay on the X server's default
// screen. The overlay's background is a snapshot of the screen taken before
// it was mapped, so outline redraws never touch the pixels being captured.
type X11 struct {
	xu     *xgbutil.XUtil
	conn   *xgb.Conn
	root   xproto.Window
	width  uint16
	height uint16
	depth  byte

	format       screenshot.PixelFormat
	bitsPerPixel int
	scanlinePad  int

	grabbed    bool
	copyGC     xproto.Gcontext
	drawGC     xproto.Gcontext
	background xproto.Pixmap
	window     xproto.Window
}

var _ Display = (*X11)(nil)

// OpenX11 connects to the X server, grabs the pointer buttons on the root
// window, snapshots the screen and maps the overlay. Failures wrap ErrSetup.
func OpenX11(opts Options) (*X11, error) {
	xu, err := xgbutil.NewConnDisplay(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to X server using DISPLAY '%s': %v", ErrSetup, opts.Display, err)
	}

	screen := xu.Screen()
	d := &X11{
		xu:     xu,
		conn:   xu.Conn(),
		root:   xu.RootWin(),
		width:  screen.WidthInPixels,
		height: screen.HeightInPixels,
		depth:  screen.RootDepth,
	}
	if err := d.setup(screen, opts); err != nil {
		if cerr := d.Close(); cerr != nil {
			log.Debugf("cleanup after failed setup: %v", cerr)
		}
		return nil, err
	}
	log.Debugf("overlay mapped: %dx%d depth=%d bpp=%d format=%+v", d.width, d.height, d.depth, d.bitsPerPixel, d.format)
	return d, nil
}

func (d *X11) setup(screen *xproto.ScreenInfo, opts Options) error {
	if err := d.resolvePixelFormat(screen); err != nil {
		return fmt.Errorf("%w: %v", ErrSetup, err)
	}

	err := xproto.GrabButtonChecked(d.conn, false, d.root,
		uint16(xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease|xproto.EventMaskButton1Motion),
		xproto.GrabModeAsync, xproto.GrabModeAsync, xproto.WindowNone, xproto.CursorNone,
		xproto.ButtonIndexAny, xproto.ModMaskAny).Check()
	if err != nil {
		return fmt.Errorf("%w: could not grab pointer buttons: %v", ErrSetup, err)
	}
	d.grabbed = true

	copyGC, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		return fmt.Errorf("%w: could not allocate copy GC id: %v", ErrSetup, err)
	}
	err = xproto.CreateGCChecked(d.conn, copyGC, xproto.Drawable(d.root),
		xproto.GcFunction|xproto.GcPlaneMask|xproto.GcSubwindowMode,
		[]uint32{xproto.GxCopy, allPlanes, xproto.SubwindowModeIncludeInferiors}).Check()
	if err != nil {
		return fmt.Errorf("%w: could not create copy GC: %v", ErrSetup, err)
	}
	d.copyGC = copyGC

	pixel, err := d.allocColor(screen.DefaultColormap, opts.OutlineColor)
	if err != nil {
		return fmt.Errorf("%w: could not allocate outline colour %s: %v", ErrSetup, opts.OutlineColor, err)
	}

	lineWidth := opts.LineWidth
	if lineWidth < 1 {
		lineWidth = config.DefaultLineWidth
	}
	drawGC, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		return fmt.Errorf("%w: could not allocate draw GC id: %v", ErrSetup, err)
	}
	err = xproto.CreateGCChecked(d.conn, drawGC, xproto.Drawable(d.root),
		xproto.GcForeground|xproto.GcLineWidth|xproto.GcLineStyle|xproto.GcCapStyle|xproto.GcJoinStyle,
		[]uint32{pixel, uint32(lineWidth), xproto.LineStyleSolid, xproto.CapStyleButt, xproto.JoinStyleBevel}).Check()
	if err != nil {
		return fmt.Errorf("%w: could not create draw GC: %v", ErrSetup, err)
	}
	d.drawGC = drawGC

	background, err := xproto.NewPixmapId(d.conn)
	if err != nil {
		return fmt.Errorf("%w: could not allocate pixmap id: %v", ErrSetup, err)
	}
	err = xproto.CreatePixmapChecked(d.conn, d.depth, background, xproto.Drawable(d.root), d.width, d.height).Check()
	if err != nil {
		return fmt.Errorf("%w: could not create background pixmap: %v", ErrSetup, err)
	}
	d.background = background

	// Snapshot before the overlay exists so it cannot end up in the capture.
	err = xproto.CopyAreaChecked(d.conn, xproto.Drawable(d.root), xproto.Drawable(d.background), d.copyGC,
		0, 0, 0, 0, d.width, d.height).Check()
	if err != nil {
		return fmt.Errorf("%w: could not snapshot the screen: %v", ErrSetup, err)
	}

	window, err := xproto.NewWindowId(d.conn)
	if err != nil {
		return fmt.Errorf("%w: could not allocate window id: %v", ErrSetup, err)
	}
	err = xproto.CreateWindowChecked(d.conn, d.depth, window, d.root,
		0, 0, d.width, d.height, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixmap|xproto.CwOverrideRedirect,
		[]uint32{uint32(d.background), 1}).Check()
	if err != nil {
		return fmt.Errorf("%w: could not create overlay window: %v", ErrSetup, err)
	}
	d.window = window

	if err := xproto.MapWindowChecked(d.conn, d.window).Check(); err != nil {
		return fmt.Errorf("%w: could not map overlay window: %v", ErrSetup, err)
	}
	// Override-redirect windows bypass the window manager, so this is only a hint.
	if err := ewmh.WmStateSet(d.xu, d.window, []string{"_NET_WM_STATE_FULLSCREEN"}); err != nil {
		log.Debugf("unable to set _NET_WM_STATE_FULLSCREEN: %v", err)
	}
	return nil
}

func (d *X11) resolvePixelFormat(screen *xproto.ScreenInfo) error {
	setup := xproto.Setup(d.conn)

	found := false
	for _, f := range setup.PixmapFormats {
		if f.Depth == d.depth {
			d.bitsPerPixel = int(f.BitsPerPixel)
			d.scanlinePad = int(f.ScanlinePad)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no pixmap format for depth %d", d.depth)
	}

	for _, depth := range screen.AllowedDepths {
		for _, v := range depth.Visuals {
			if v.VisualId != screen.RootVisual {
				continue
			}
			format, err := pixelFormatFor(d.bitsPerPixel, setup.ImageByteOrder, v.RedMask, v.GreenMask, v.BlueMask)
			if err != nil {
				return err
			}
			d.format = format
			return nil
		}
	}
	return fmt.Errorf("root visual %d not found", screen.RootVisual)
}

func (d *X11) allocColor(cmap xproto.Colormap, c config.RGB) (uint32, error) {
	reply, err := xproto.AllocColor(d.conn, cmap, scaleColor(c.R), scaleColor(c.G), scaleColor(c.B)).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Pixel, nil
}

// NextEvent returns the next pointer event. ctx is checked before each wait;
// a cancellation that arrives while blocked in WaitForEvent takes effect
// once the next event or error is delivered.
func (d *X11) NextEvent(ctx context.Context) (selection.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return selection.Event{}, err
		}
		ev, xerr := d.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return selection.Event{}, errors.New("connection to X server closed")
		}
		if xerr != nil {
			// Errors of unchecked drawing requests end up here.
			log.Debugf("X error: %v", xerr)
			continue
		}
		return translateEvent(ev), nil
	}
}

func (d *X11) DrawOutline(region screenshot.Region) error {
	rect, err := toRectangle(region)
	if err != nil {
		return err
	}
	xproto.ClearArea(d.conn, false, d.window, 0, 0, 0, 0)
	xproto.PolyRectangle(d.conn, xproto.Drawable(d.window), d.drawGC, []xproto.Rectangle{rect})
	return nil
}

func (d *X11) ClearOutline() error {
	xproto.ClearArea(d.conn, false, d.window, 0, 0, 0, 0)
	return nil
}

func (d *X11) Background() screenshot.Surface {
	return pixmapSurface{d: d}
}

// Close releases every server-side resource that was created and closes
// the connection. It is safe to call on a partially set up display.
func (d *X11) Close() error {
	if d.conn == nil {
		return nil
	}
	var result *multierror.Error
	check := func(what string, cookie interface{ Check() error }) {
		if err := cookie.Check(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", what, err))
		}
	}

	if d.window != 0 {
		check("unmap overlay", xproto.UnmapWindowChecked(d.conn, d.window))
		check("destroy overlay", xproto.DestroyWindowChecked(d.conn, d.window))
	}
	if d.background != 0 {
		check("free background pixmap", xproto.FreePixmapChecked(d.conn, d.background))
	}
	if d.drawGC != 0 {
		check("free draw GC", xproto.FreeGCChecked(d.conn, d.drawGC))
	}
	if d.copyGC != 0 {
		check("free copy GC", xproto.FreeGCChecked(d.conn, d.copyGC))
	}
	if d.grabbed {
		check("ungrab buttons", xproto.UngrabButtonChecked(d.conn, xproto.ButtonIndexAny, d.root, xproto.ModMaskAny))
	}
	d.conn.Close()
	d.conn = nil
	return result.ErrorOrNil()
}

// pixmapSurface reads regions of the background snapshot.
type pixmapSurface struct {
	d *X11
}

func (s pixmapSurface) Raw(region screenshot.Region) (*screenshot.RawImage, error) {
	d := s.d
	if d.conn == nil {
		return nil, errors.New("display closed")
	}
	rect, err := toRectangle(region)
	if err != nil {
		return nil, err
	}
	if region.X < 0 || region.Y < 0 || region.X+region.Width > int(d.width) || region.Y+region.Height > int(d.height) {
		return nil, fmt.Errorf("region %s outside the %dx%d screen", region, d.width, d.height)
	}

	reply, err := xproto.GetImage(d.conn, xproto.ImageFormatZPixmap, xproto.Drawable(d.background),
		rect.X, rect.Y, rect.Width, rect.Height, allPlanes).Reply()
	if err != nil {
		return nil, fmt.Errorf("GetImage: %w", err)
	}
	return &screenshot.RawImage{
		Pix:    reply.Data,
		Width:  region.Width,
		Height: region.Height,
		Stride: rowStride(region.Width, d.bitsPerPixel, d.scanlinePad),
		Format: d.format,
	}, nil
}

func translateEvent(ev xgb.Event) selection.Event {
	switch e := ev.(type) {
	case xproto.ButtonPressEvent:
		return selection.Event{
			Kind:   selection.EventButtonPress,
			Button: int(e.Detail),
			At:     screenshot.Point{X: int(e.RootX), Y: int(e.RootY)},
		}
	case xproto.ButtonReleaseEvent:
		return selection.Event{
			Kind:   selection.EventButtonRelease,
			Button: int(e.Detail),
			At:     screenshot.Point{X: int(e.RootX), Y: int(e.RootY)},
		}
	case xproto.MotionNotifyEvent:
		return selection.Event{
			Kind: selection.EventMotion,
			At:   screenshot.Point{X: int(e.RootX), Y: int(e.RootY)},
		}
	}
	return selection.Event{Kind: selection.EventOther}
}

// pixelFormatFor derives channel byte offsets from the visual's colour masks.
// Only visuals with 8 bits per channel on byte boundaries are supported.
func pixelFormatFor(bitsPerPixel int, byteOrder byte, red, green, blue uint32) (screenshot.PixelFormat, error) {
	if bitsPerPixel%8 != 0 || bitsPerPixel < 24 {
		return screenshot.PixelFormat{}, fmt.Errorf("unsupported %d bits per pixel", bitsPerPixel)
	}
	bytesPerPixel := bitsPerPixel / 8

	offset := func(name string, mask uint32) (int, error) {
		shift := bits.TrailingZeros32(mask)
		if mask == 0 || shift%8 != 0 || mask>>shift != 0xff {
			return 0, fmt.Errorf("unsupported %s mask %#08x", name, mask)
		}
		idx := shift / 8
		if byteOrder == xproto.ImageOrderMSBFirst {
			idx = bytesPerPixel - 1 - idx
		}
		return idx, nil
	}

	var f screenshot.PixelFormat
	var err error
	f.BytesPerPixel = bytesPerPixel
	if f.R, err = offset("red", red); err != nil {
		return screenshot.PixelFormat{}, err
	}
	if f.G, err = offset("green", green); err != nil {
		return screenshot.PixelFormat{}, err
	}
	if f.B, err = offset("blue", blue); err != nil {
		return screenshot.PixelFormat{}, err
	}
	return f, f.Validate()
}

// rowStride is the byte length of a ZPixmap scanline padded to scanlinePad bits.
func rowStride(width, bitsPerPixel, scanlinePad int) int {
	if scanlinePad <= 0 {
		scanlinePad = 8
	}
	rowBits := width * bitsPerPixel
	return (rowBits + scanlinePad - 1) / scanlinePad * scanlinePad / 8
}

// scaleColor maps 0-255 onto the 16-bit range X colormaps use.
func scaleColor(v uint8) uint16 {
	return uint16(uint32(v) * 65535 / 255)
}

func toRectangle(r screenshot.Region) (xproto.Rectangle, error) {
	if r.X < math.MinInt16 || r.X > math.MaxInt16 || r.Y < math.MinInt16 || r.Y > math.MaxInt16 ||
		r.Width < 0 || r.Width > math.MaxUint16 || r.Height < 0 || r.Height > math.MaxUint16 {
		return xproto.Rectangle{}, fmt.Errorf("region %s out of X11 coordinate range", r)
	}
	return xproto.Rectangle{X: int16(r.X), Y: int16(r.Y), Width: uint16(r.Width), Height: uint16(r.Height)}, nil
}
