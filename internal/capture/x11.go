package capture

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/vrdesk/ovrly/internal/gpu"
	"github.com/vrdesk/ovrly/internal/logger"
)

// X11Source captures windows and monitors through X11/XWayland. Window
// sessions use the Composite extension where available so obscured windows
// still produce content; monitor sessions read the root window at the
// monitor's CRTC geometry.
type X11Source struct {
	conn             *xgb.Conn
	root             xproto.Window
	screen           *xproto.ScreenInfo
	compositeEnabled bool
	randrEnabled     bool
	mu               sync.Mutex
}

// NewX11Source connects to the X server and initializes the Composite and
// RandR extensions. Missing extensions degrade capture rather than fail it.
func NewX11Source() (*X11Source, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	s := &X11Source{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}

	log := logger.WithComponent("x11-capture")
	if err := composite.Init(conn); err != nil {
		log.Warn().
			Err(err).
			Msg("Composite extension not available - obscured windows may capture black")
	} else {
		s.compositeEnabled = true
	}
	if err := randr.Init(conn); err != nil {
		log.Warn().
			Err(err).
			Msg("RandR extension not available - monitor capture disabled")
	} else {
		s.randrEnabled = true
	}

	return s, nil
}

// SessionFor creates a capture session for a window handle or monitor index.
func (s *X11Source) SessionFor(handle uint64, monitor bool, dev gpu.Device) (Session, error) {
	ctx, err := dev.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create upload context: %w", err)
	}
	sess := &x11Session{
		source: s,
		dev:    dev,
		ctx:    ctx,
	}
	if monitor {
		rect, err := s.monitorGeometry(int(handle))
		if err != nil {
			return nil, err
		}
		sess.region = rect
		sess.drawableFor = func() (xproto.Drawable, image.Rectangle, func(), error) {
			return xproto.Drawable(s.root), rect, nil, nil
		}
		return sess, nil
	}

	win := xproto.Window(handle)
	attrs, err := xproto.GetWindowAttributes(s.conn, win).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window attributes: %w", err)
	}
	if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
		child, err := s.findCapturableChild(win)
		if err != nil {
			return nil, fmt.Errorf("no capturable window for handle %#x: %w", handle, err)
		}
		win = child
	}
	sess.window = win
	sess.drawableFor = func() (xproto.Drawable, image.Rectangle, func(), error) {
		return s.windowDrawable(win)
	}
	return sess, nil
}

// Close disconnects from the X server.
func (s *X11Source) Close() error {
	s.conn.Close()
	return nil
}

func (s *X11Source) monitorGeometry(index int) (image.Rectangle, error) {
	if !s.randrEnabled {
		return image.Rectangle{}, fmt.Errorf("monitor capture requires the RandR extension")
	}
	res, err := randr.GetScreenResourcesCurrent(s.conn, s.root).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to query screen resources: %w", err)
	}
	active := make([]image.Rectangle, 0, len(res.Crtcs))
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(s.conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil || info.Width == 0 || info.Height == 0 {
			continue
		}
		active = append(active, image.Rect(
			int(info.X), int(info.Y),
			int(info.X)+int(info.Width), int(info.Y)+int(info.Height),
		))
	}
	if index < 0 || index >= len(active) {
		return image.Rectangle{}, fmt.Errorf("monitor index %d out of range (%d active)", index, len(active))
	}
	return active[index], nil
}

// findCapturableChild recursively searches for a viewable input-output child.
func (s *X11Source) findCapturableChild(parent xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(s.conn, parent).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query tree: %w", err)
	}
	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(s.conn, child).Reply()
		if err != nil {
			continue
		}
		geo, err := xproto.GetGeometry(s.conn, xproto.Drawable(child)).Reply()
		if err != nil {
			continue
		}
		if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable {
			if geo.Width > 10 && geo.Height > 10 {
				return child, nil
			}
		}
		if grandchild, err := s.findCapturableChild(child); err == nil {
			return grandchild, nil
		}
	}
	return 0, fmt.Errorf("no capturable child found")
}

// windowDrawable resolves the drawable to read a window's pixels from,
// preferring a Composite-named pixmap. The returned cleanup func releases
// the pixmap and redirect; it may be nil.
func (s *X11Source) windowDrawable(win xproto.Window) (xproto.Drawable, image.Rectangle, func(), error) {
	geo, err := xproto.GetGeometry(s.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return 0, image.Rectangle{}, nil, fmt.Errorf("failed to get window geometry: %w", err)
	}
	rect := image.Rect(0, 0, int(geo.Width), int(geo.Height))

	if !s.compositeEnabled {
		return xproto.Drawable(win), rect, nil, nil
	}
	if err := composite.RedirectWindowChecked(s.conn, win, composite.RedirectAutomatic).Check(); err != nil {
		return xproto.Drawable(win), rect, nil, nil
	}
	pixmap, err := xproto.NewPixmapId(s.conn)
	if err != nil {
		composite.UnredirectWindow(s.conn, win, composite.RedirectAutomatic)
		return xproto.Drawable(win), rect, nil, nil
	}
	if err := composite.NameWindowPixmapChecked(s.conn, win, pixmap).Check(); err != nil {
		composite.UnredirectWindow(s.conn, win, composite.RedirectAutomatic)
		return xproto.Drawable(win), rect, nil, nil
	}
	cleanup := func() {
		xproto.FreePixmap(s.conn, pixmap)
		composite.UnredirectWindow(s.conn, win, composite.RedirectAutomatic)
	}
	return xproto.Drawable(pixmap), rect, cleanup, nil
}

// x11Session captures one window or monitor region and keeps its content in
// a staging texture on the composition device.
type x11Session struct {
	source      *X11Source
	dev         gpu.Device
	ctx         gpu.Context
	window      xproto.Window
	region      image.Rectangle
	drawableFor func() (xproto.Drawable, image.Rectangle, func(), error)

	tex    gpu.Texture
	width  int
	height int
}

func (s *x11Session) Surface() (gpu.Texture, error) {
	s.source.mu.Lock()
	defer s.source.mu.Unlock()

	drawable, rect, cleanup, err := s.drawableFor()
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, ErrNoFrame
	}

	reply, err := xproto.GetImage(
		s.source.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		int16(rect.Min.X), int16(rect.Min.Y),
		uint16(rect.Dx()), uint16(rect.Dy()),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	img := s.convertImageData(reply.Data, rect.Dx(), rect.Dy())

	if s.tex == nil || s.width != rect.Dx() || s.height != rect.Dy() {
		s.width, s.height = rect.Dx(), rect.Dy()
		s.tex, err = s.dev.CreateTexture(gpu.TextureDesc{
			Width:  s.width,
			Height: s.height,
			Format: gpu.FormatRGBA8,
			Label:  "capture-staging",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create staging texture: %w", err)
		}
	}
	if err := s.ctx.Upload(s.tex, img); err != nil {
		return nil, fmt.Errorf("failed to upload capture: %w", err)
	}
	return s.tex, nil
}

func (s *x11Session) ContentSize() (int, int) {
	return s.width, s.height
}

func (s *x11Session) ContentRect() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

func (s *x11Session) Close() error {
	s.tex = nil
	return nil
}

// convertImageData converts X11 ZPixmap data (BGRA) to RGBA.
func (s *x11Session) convertImageData(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	depth := int(s.source.screen.RootDepth)
	if depth == 24 || depth == 32 {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * 4
				if i+3 < len(data) {
					img.SetRGBA(x, y, color.RGBA{
						R: data[i+2],
						G: data[i+1],
						B: data[i],
						A: 255,
					})
				}
			}
		}
	}
	return img
}
