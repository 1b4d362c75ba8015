package shape

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/jmylchreest/winsync/internal/model"
)

// X11Tracker reports the root-relative geometry of one X11 window.
type X11Tracker struct {
	mu     sync.Mutex
	xu     *xgbutil.XUtil
	window xproto.Window
}

// NewX11Tracker connects to the X server named by $DISPLAY. The tracked
// window is win if non-zero, else $WINDOWID (set by most terminal
// emulators for their children), else the active window at startup.
func NewX11Tracker(win uint32) (*X11Tracker, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("%w: DISPLAY not set", ErrUnavailable)
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}

	window := xproto.Window(win)
	if window == 0 {
		window, err = resolveWindow(xu)
		if err != nil {
			xu.Conn().Close()
			return nil, err
		}
	}

	return &X11Tracker{xu: xu, window: window}, nil
}

func resolveWindow(xu *xgbutil.XUtil) (xproto.Window, error) {
	if v := os.Getenv("WINDOWID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err == nil && id != 0 {
			return xproto.Window(id), nil
		}
	}

	active, err := ewmh.ActiveWindowGet(xu)
	if err != nil || active == 0 {
		return 0, fmt.Errorf("%w: no WINDOWID and no active window", ErrUnavailable)
	}
	return active, nil
}

// Window returns the tracked window id.
func (t *X11Tracker) Window() uint32 {
	return uint32(t.window)
}

// Sample queries the window geometry and translates its origin to root
// coordinates.
func (t *X11Tracker) Sample() (model.Shape, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.xu == nil {
		return model.Shape{}, fmt.Errorf("%w: connection closed", ErrUnavailable)
	}

	conn := t.xu.Conn()
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(t.window)).Reply()
	if err != nil {
		return model.Shape{}, fmt.Errorf("get geometry: %w", err)
	}

	translate, err := xproto.TranslateCoordinates(conn, t.window, t.xu.RootWin(), 0, 0).Reply()
	if err != nil {
		return model.Shape{}, fmt.Errorf("translate coordinates: %w", err)
	}

	return model.Shape{
		X: float64(translate.DstX),
		Y: float64(translate.DstY),
		W: float64(geom.Width),
		H: float64(geom.Height),
	}, nil
}

// Close disconnects from the X server.
func (t *X11Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.xu != nil {
		t.xu.Conn().Close()
		t.xu = nil
	}
}
