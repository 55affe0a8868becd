package input

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"

	"github.com/vrdesk/ovrly/internal/logger"
)

// X11Pointer injects pointer events through the XTEST extension.
type X11Pointer struct {
	conn *xgb.Conn
	root xproto.Window
	mu   sync.Mutex
}

// NewX11Pointer connects to the X server and initializes XTEST.
func NewX11Pointer() (*X11Pointer, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("XTEST extension unavailable: %w", err)
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	logger.WithComponent("x11-pointer").Debug().Msg("XTEST pointer injection ready")
	return &X11Pointer{conn: conn, root: screen.Root}, nil
}

// Close disconnects from the X server.
func (p *X11Pointer) Close() error {
	p.conn.Close()
	return nil
}

// Move warps the pointer to window-local coordinates.
func (p *X11Pointer) Move(handle uint64, x, y int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rx, ry, err := p.toRoot(xproto.Window(handle), x, y)
	if err != nil {
		return err
	}
	return xproto.WarpPointerChecked(p.conn, xproto.WindowNone, p.root, 0, 0, 0, 0, rx, ry).Check()
}

// Click moves the pointer, then synthesizes a primary button press/release.
func (p *X11Pointer) Click(handle uint64, x, y int) error {
	if err := p.Move(handle, x, y); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := xtest.FakeInputChecked(p.conn, xproto.ButtonPress, 1, xproto.TimeCurrentTime, p.root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("failed to inject button press: %w", err)
	}
	if err := xtest.FakeInputChecked(p.conn, xproto.ButtonRelease, 1, xproto.TimeCurrentTime, p.root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("failed to inject button release: %w", err)
	}
	return nil
}

// Raise restacks the window above its siblings and focuses it.
func (p *X11Pointer) Raise(handle uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	win := xproto.Window(handle)
	err := xproto.ConfigureWindowChecked(p.conn, win,
		xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
	if err != nil {
		return fmt.Errorf("failed to raise window %#x: %w", handle, err)
	}
	err = xproto.SetInputFocusChecked(p.conn, xproto.InputFocusPointerRoot, win, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("failed to focus window %#x: %w", handle, err)
	}
	return nil
}

func (p *X11Pointer) toRoot(win xproto.Window, x, y int) (int16, int16, error) {
	tr, err := xproto.TranslateCoordinates(p.conn, win, p.root, int16(x), int16(y)).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to translate coordinates: %w", err)
	}
	return tr.DstX, tr.DstY, nil
}
