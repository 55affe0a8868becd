// Package window enumerates desktop windows and monitors so the CLI and
// API can offer capture targets for overlay slots.
package window

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/vrdesk/ovrly/internal/logger"
)

// Info describes one capturable desktop window.
type Info struct {
	Handle uint64 `json:"handle"`
	Title  string `json:"title"`
	Class  string `json:"class"`
	PID    int    `json:"pid"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MonitorInfo describes one active monitor.
type MonitorInfo struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Manager enumerates windows and monitors over X11.
type Manager struct {
	conn *xgb.Conn
	root xproto.Window
	mu   sync.Mutex

	randrEnabled bool
}

// NewManager connects to the X server.
func NewManager() (*Manager, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	m := &Manager{conn: conn, root: root}
	if err := randr.Init(conn); err != nil {
		logger.WithComponent("window").Warn().
			Err(err).
			Msg("RandR extension not available - monitor listing disabled")
	} else {
		m.randrEnabled = true
	}
	return m, nil
}

// Close disconnects from the X server.
func (m *Manager) Close() {
	m.conn.Close()
}

// ListWindows returns the window manager's client list with titles.
// Unmapped and nameless windows are skipped.
func (m *Manager) ListWindows() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clientAtom, err := m.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(
		m.conn, false, m.root, clientAtom, xproto.AtomWindow, 0, 1<<16,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read client list: %w", err)
	}

	var windows []Info
	data := reply.Value
	for i := 0; i+4 <= len(data); i += 4 {
		win := xproto.Window(uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24)

		attrs, err := xproto.GetWindowAttributes(m.conn, win).Reply()
		if err != nil || attrs.MapState != xproto.MapStateViewable {
			continue
		}

		info := Info{Handle: uint64(win)}
		if title, err := m.getStringProperty(win, "_NET_WM_NAME"); err == nil && title != "" {
			info.Title = title
		} else if title, err := m.getStringProperty(win, "WM_NAME"); err == nil {
			info.Title = title
		}
		if info.Title == "" {
			continue
		}
		if class, err := m.getStringProperty(win, "WM_CLASS"); err == nil {
			info.Class = class
		}
		info.PID = m.getPID(win)

		if geo, err := xproto.GetGeometry(m.conn, xproto.Drawable(win)).Reply(); err == nil {
			info.Width = int(geo.Width)
			info.Height = int(geo.Height)
		}
		windows = append(windows, info)
	}
	return windows, nil
}

// ListMonitors returns the active monitors in CRTC order, matching the
// monitor indices the capture source uses.
func (m *Manager) ListMonitors() ([]MonitorInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.randrEnabled {
		return nil, fmt.Errorf("monitor listing requires the RandR extension")
	}

	res, err := randr.GetScreenResourcesCurrent(m.conn, m.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query screen resources: %w", err)
	}

	var monitors []MonitorInfo
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(m.conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil || info.Width == 0 || info.Height == 0 {
			continue
		}
		mon := MonitorInfo{
			Index:  len(monitors),
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		}
		if len(info.Outputs) > 0 {
			if out, err := randr.GetOutputInfo(m.conn, info.Outputs[0], res.ConfigTimestamp).Reply(); err == nil {
				mon.Name = string(out.Name)
			}
		}
		monitors = append(monitors, mon)
	}
	return monitors, nil
}

// getAtom gets an atom ID by name
func (m *Manager) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(m.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}
	return reply.Atom, nil
}

// getStringProperty reads a window property as a string
func (m *Manager) getStringProperty(win xproto.Window, atomName string) (string, error) {
	atom, err := m.getAtom(atomName)
	if err != nil {
		return "", err
	}
	reply, err := xproto.GetProperty(
		m.conn, false, win, atom, xproto.GetPropertyTypeAny, 0, 1<<16,
	).Reply()
	if err != nil {
		return "", err
	}
	value := reply.Value
	// WM_CLASS is two NUL-separated strings; take the first.
	for i, b := range value {
		if b == 0 {
			value = value[:i]
			break
		}
	}
	return string(value), nil
}

// getPID reads _NET_WM_PID; zero when unset.
func (m *Manager) getPID(win xproto.Window) int {
	atom, err := m.getAtom("_NET_WM_PID")
	if err != nil {
		return 0
	}
	reply, err := xproto.GetProperty(
		m.conn, false, win, atom, xproto.AtomCardinal, 0, 1,
	).Reply()
	if err != nil || len(reply.Value) < 4 {
		return 0
	}
	v := reply.Value
	return int(uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24)
}
